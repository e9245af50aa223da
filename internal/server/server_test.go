package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	_ "noticeboard-backend/docs"
	"noticeboard-backend/internal/auth"
	"noticeboard-backend/internal/logging"
	"noticeboard-backend/internal/metrics"
	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/storage"
	"noticeboard-backend/internal/storage/memory"
)

type client struct {
	t      *testing.T
	router http.Handler
}

func newClient(t *testing.T, store storage.Store) *client {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()

	return &client{t: t, router: NewRouter(Deps{
		Store:    store,
		Issuer:   issuer,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Log:      logging.Discard(),
		Metrics:  metrics.NewCollector(reg),
		Gatherer: reg,
	})}
}

func (c *client) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

// register signs up and logs in, returning the bearer token.
func (c *client) register(name, email, password string) string {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/sign_up", "", map[string]string{"name": name, "email": email, "password": password})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Msg   string `json:"msg"`
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(c.t, "Login successful", resp.Msg)
	require.NotEmpty(c.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNoticeLifecycle(t *testing.T) {
	c := newClient(t, memory.New())
	token := c.register("A", "a@x.com", "p1")

	rec := c.do(http.MethodPost, "/notices", token, map[string]string{"title": "t", "body": "b", "category": "c", "date": "2024-01-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Notice](t, rec)
	assert.NotEmpty(t, created.UserID)
	require.NotNil(t, created.Date)
	assert.Equal(t, "2024-01-01", created.Date.Format(models.DateLayout))

	rec = c.do(http.MethodGet, "/notices?category=c", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Notice](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "t", list[0].Title)
	require.NotNil(t, list[0].Date)
	assert.Equal(t, "2024-01-01", list[0].Date.Format(models.DateLayout))
	require.NotNil(t, list[0].Owner)
	assert.Equal(t, "A", list[0].Owner.Name)
	assert.Equal(t, "a@x.com", list[0].Owner.Email)

	rec = c.do(http.MethodPut, "/notices/"+created.ID, token, map[string]string{"title": "t2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t2", decode[models.Notice](t, rec).Title)

	rec = c.do(http.MethodDelete, "/notices/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.Notice](t, rec).ID)

	rec = c.do(http.MethodDelete, "/notices/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/notices", token, nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestOwnershipIsolation(t *testing.T) {
	c := newClient(t, memory.New())
	alice := c.register("A", "a@x.com", "p1")
	bob := c.register("B", "b@x.com", "p2")

	rec := c.do(http.MethodPost, "/notices", alice, map[string]string{"title": "t"})
	require.Equal(t, http.StatusCreated, rec.Code)
	n := decode[models.Notice](t, rec)

	rec = c.do(http.MethodGet, "/notices", bob, nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	put := c.do(http.MethodPut, "/notices/"+n.ID, bob, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, put.Code)
	del := c.do(http.MethodDelete, "/notices/"+n.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, del.Code)

	rec = c.do(http.MethodGet, "/notices", alice, nil)
	list := decode[[]models.Notice](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "t", list[0].Title)
}

func TestAuthenticationGate(t *testing.T) {
	store := memory.New()
	c := newClient(t, store)

	other, err := auth.NewIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, err := other.GenerateToken("u1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "Log in first"},
		{"single word", "Bearer", "Log in first"},
		{"garbage token", "Bearer not-a-jwt", "Login first"},
		{"foreign signature", "Bearer " + foreign, "Login first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notices", bytes.NewBufferString(`{"title":"t"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.want, decode[map[string]string](t, rec)["error"])
		})
	}

	list, err := store.ListNotices(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoginFailures(t *testing.T) {
	c := newClient(t, memory.New())
	c.register("A", "a@x.com", "p1")

	rec := c.do(http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token")

	rec = c.do(http.MethodPost, "/login", "", map[string]string{"email": "nobody@x.com", "password": "p1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/sign_up", "", map[string]string{"name": "A", "email": "a@x.com", "password": "p3"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type unreachableStore struct {
	*memory.Store
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthz(t *testing.T) {
	rec := newClient(t, memory.New()).do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = newClient(t, unreachableStore{memory.New()}).do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	c := newClient(t, memory.New())
	c.register("A", "a@x.com", "p1")

	rec := c.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `noticeboard_auth_events_total{event="login",result="success"} 1`)
	assert.Contains(t, body, `noticeboard_http_requests_total{method="POST",route="/sign_up",status="201"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	rec := newClient(t, memory.New()).do(http.MethodOptions, "/notices", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerDocument(t *testing.T) {
	rec := newClient(t, memory.New()).do(http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/notices/{id}"`)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, logging.Discard()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
