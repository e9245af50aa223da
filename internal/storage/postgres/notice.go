package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"noticeboard-backend/internal/models"
)

const noticeColumns = `id, user_id, title, body, category, date, created_at, updated_at`

type noticeRow struct {
	models.Notice
	OwnerName  string `db:"owner_name"`
	OwnerEmail string `db:"owner_email"`
}

func (s *Storage) CreateNotice(ctx context.Context, notice *models.Notice) error {
	query := `
		INSERT INTO notices (id, user_id, title, body, category, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, id, notice.UserID, notice.Title, notice.Body,
		notice.Category, notice.Date, now)
	if err != nil {
		return err
	}

	notice.ID = id
	notice.CreatedAt = now
	notice.UpdatedAt = now
	return nil
}

func (s *Storage) ListNotices(ctx context.Context, userID, category string) ([]models.Notice, error) {
	if !validID(userID) {
		return []models.Notice{}, nil
	}

	query := `
		SELECT n.id, n.user_id, n.title, n.body, n.category, n.date, n.created_at, n.updated_at,
			u.name AS owner_name, u.email AS owner_email
		FROM notices n
		JOIN users u ON u.id = n.user_id
		WHERE n.user_id = $1 AND ($2 = '' OR n.category = $2)
		ORDER BY n.created_at ASC
	`

	var rows []noticeRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, category); err != nil {
		return nil, err
	}

	notices := make([]models.Notice, 0, len(rows))
	for _, row := range rows {
		n := row.Notice
		n.Owner = &models.UserSummary{ID: n.UserID, Name: row.OwnerName, Email: row.OwnerEmail}
		notices = append(notices, n)
	}
	return notices, nil
}

func (s *Storage) UpdateNotice(ctx context.Context, id, userID string, patch models.NoticePatch) (*models.Notice, error) {
	if !validID(id) || !validID(userID) {
		return nil, nil
	}

	query := `
		UPDATE notices
		SET title = COALESCE($3, title),
			body = COALESCE($4, body),
			category = COALESCE($5, category),
			date = COALESCE($6, date),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + noticeColumns

	var notice models.Notice
	err := s.db.GetContext(ctx, &notice, query, id, userID, patch.Title, patch.Body, patch.Category, patch.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &notice, nil
}

func (s *Storage) DeleteNotice(ctx context.Context, id, userID string) (*models.Notice, error) {
	if !validID(id) || !validID(userID) {
		return nil, nil
	}

	query := `DELETE FROM notices WHERE id = $1 AND user_id = $2 RETURNING ` + noticeColumns

	var notice models.Notice
	if err := s.db.GetContext(ctx, &notice, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &notice, nil
}

// validID filters values that would make Postgres reject the uuid cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
