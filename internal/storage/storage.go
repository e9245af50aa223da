// Package storage defines the persistence contracts shared by the store drivers.
//
// Lookups that find nothing return a nil record and a nil error. Update and
// delete are scoped by both the notice id and the owner id in a single
// operation, so a caller can never touch a notice owned by someone else and
// cannot tell such a notice apart from a missing one.
package storage

import (
	"context"
	"errors"

	"noticeboard-backend/internal/models"
)

var ErrEmailTaken = errors.New("email already registered")

type UserStore interface {
	// CreateUser assigns ID and CreatedAt on success.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type NoticeStore interface {
	// CreateNotice assigns ID, CreatedAt and UpdatedAt on success.
	CreateNotice(ctx context.Context, notice *models.Notice) error
	// ListNotices returns the owner's notices with Owner populated. An empty
	// category matches every notice.
	ListNotices(ctx context.Context, userID, category string) ([]models.Notice, error)
	UpdateNotice(ctx context.Context, id, userID string, patch models.NoticePatch) (*models.Notice, error)
	DeleteNotice(ctx context.Context, id, userID string) (*models.Notice, error)
}

type Store interface {
	UserStore
	NoticeStore
	Ping(ctx context.Context) error
	Close() error
}
