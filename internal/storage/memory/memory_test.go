package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/storage"
)

func newUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "name " + email, Email: email, PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := New()
	u := newUser(t, s, "a@x.com")
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	err := s.CreateUser(context.Background(), &models.User{Email: "a@x.com"})
	require.ErrorIs(t, err, storage.ErrEmailTaken)
}

func TestGetUserByEmail(t *testing.T) {
	s := New()
	u := newUser(t, s, "a@x.com")

	got, err := s.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := s.GetUserByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListNotices_ScopedByOwnerAndCategory(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newUser(t, s, "a@x.com")
	b := newUser(t, s, "b@x.com")

	require.NoError(t, s.CreateNotice(ctx, &models.Notice{UserID: a.ID, Title: "a1", Category: "c"}))
	require.NoError(t, s.CreateNotice(ctx, &models.Notice{UserID: a.ID, Title: "a2", Category: "d"}))
	require.NoError(t, s.CreateNotice(ctx, &models.Notice{UserID: b.ID, Title: "b1", Category: "c"}))

	all, err := s.ListNotices(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a1", all[0].Title)
	require.NotNil(t, all[0].Owner)
	assert.Equal(t, models.UserSummary{ID: a.ID, Name: a.Name, Email: a.Email}, *all[0].Owner)

	filtered, err := s.ListNotices(ctx, a.ID, "c")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a1", filtered[0].Title)

	none, err := s.ListNotices(ctx, "nobody", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateAndDeleteNotice_Ownership(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newUser(t, s, "a@x.com")
	b := newUser(t, s, "b@x.com")

	n := &models.Notice{UserID: a.ID, Title: "t", Body: "b"}
	require.NoError(t, s.CreateNotice(ctx, n))

	title := "changed"
	got, err := s.UpdateNotice(ctx, n.ID, b.ID, models.NoticePatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.UpdateNotice(ctx, n.ID, a.ID, models.NoticePatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "changed", got.Title)
	assert.Equal(t, "b", got.Body)

	deleted, err := s.DeleteNotice(ctx, n.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	deleted, err = s.DeleteNotice(ctx, n.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, n.ID, deleted.ID)

	deleted, err = s.DeleteNotice(ctx, n.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	remaining, err := s.ListNotices(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
