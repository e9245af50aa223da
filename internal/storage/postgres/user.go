package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/storage"
)

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, phone, department, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	id := uuid.New().String()
	createdAt := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, id, user.Name, user.Email, user.PasswordHash,
		user.Phone, user.Department, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrEmailTaken
		}
		return err
	}

	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, name, email, password_hash, phone, department, created_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	if err := s.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
