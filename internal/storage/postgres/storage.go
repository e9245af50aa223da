// Package postgres stores users and notices in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"noticeboard-backend/internal/storage"
)

//go:embed schema.sql
var schema string

const (
	connectAttempts = 10
	connectWait     = 2 * time.Second
)

type Storage struct {
	db *sqlx.DB
}

var _ storage.Store = (*Storage)(nil)

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Open connects with retries and makes sure the tables exist.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Storage, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			break
		}
		log.Warn("database connection attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectWait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := NewStorage(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables and indexes if they are missing.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
