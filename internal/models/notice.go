package models

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Notice struct {
	ID        string       `json:"id" db:"id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Title     string       `json:"title" db:"title"`
	Body      string       `json:"body" db:"body"`
	Category  string       `json:"category" db:"category"`
	Date      *time.Time   `json:"date" db:"date"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
	Owner     *UserSummary `json:"user,omitempty" db:"-"`
}

// NoticePatch carries the fields of an update. Nil fields are left untouched.
type NoticePatch struct {
	Title    *string
	Body     *string
	Category *string
	Date     *time.Time
}

func (p NoticePatch) Apply(n *Notice) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.Category != nil {
		n.Category = *p.Category
	}
	if p.Date != nil {
		d := *p.Date
		n.Date = &d
	}
}

// ParseDate accepts a calendar date (2024-01-01) or an RFC 3339 timestamp.
// A timestamp is reduced to its UTC calendar date, so every store keeps the
// same value. An empty string yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", value)
	}
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day, nil
}
