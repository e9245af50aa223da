// Package memory is an in-process store used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	users   map[string]models.User
	byEmail map[string]string
	notices map[string]models.Notice
	order   []string
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		notices: make(map[string]models.Notice),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return storage.ErrEmailTaken
	}

	user.ID = uuid.New().String()
	user.CreatedAt = s.now()
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) CreateNotice(_ context.Context, notice *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	notice.ID = uuid.New().String()
	notice.CreatedAt = now
	notice.UpdatedAt = now
	notice.Owner = nil
	s.notices[notice.ID] = cloneNotice(*notice)
	s.order = append(s.order, notice.ID)
	return nil
}

func (s *Store) ListNotices(_ context.Context, userID, category string) ([]models.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notices := make([]models.Notice, 0)
	for _, id := range s.order {
		n := s.notices[id]
		if n.UserID != userID {
			continue
		}
		if category != "" && n.Category != category {
			continue
		}
		n = cloneNotice(n)
		if owner, ok := s.users[n.UserID]; ok {
			n.Owner = &models.UserSummary{ID: owner.ID, Name: owner.Name, Email: owner.Email}
		}
		notices = append(notices, n)
	}
	return notices, nil
}

func (s *Store) UpdateNotice(_ context.Context, id, userID string, patch models.NoticePatch) (*models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notices[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	patch.Apply(&n)
	n.UpdatedAt = s.now()
	s.notices[id] = n

	out := cloneNotice(n)
	return &out, nil
}

func (s *Store) DeleteNotice(_ context.Context, id, userID string) (*models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notices[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	delete(s.notices, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return &n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneNotice(n models.Notice) models.Notice {
	if n.Date != nil {
		d := *n.Date
		n.Date = &d
	}
	return n
}
