// Package server assembles the HTTP router and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"noticeboard-backend/internal/auth"
	"noticeboard-backend/internal/events"
	"noticeboard-backend/internal/handlers"
	"noticeboard-backend/internal/metrics"
	"noticeboard-backend/internal/middleware"
	"noticeboard-backend/internal/respond"
	"noticeboard-backend/internal/storage"
)

const (
	defaultRequestTimeout = 15 * time.Second
	healthTimeout         = 2 * time.Second
)

// Deps are the collaborators the router is built from. Publisher, Metrics and
// Gatherer are optional.
type Deps struct {
	Store          storage.Store
	Issuer         *auth.Issuer
	Hasher         auth.PasswordHasher
	Publisher      events.Publisher
	Log            *slog.Logger
	Metrics        *metrics.Collector
	Gatherer       prometheus.Gatherer
	CORSOrigin     string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.CORSOrigin == "" {
		d.CORSOrigin = "*"
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}

	authHandler := auth.NewHandler(d.Store, d.Hasher, d.Issuer, d.Log, d.Metrics)
	noticeHandler := handlers.New(d.Store, d.Publisher, d.Log, d.Metrics)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.NewCORSMiddleware(d.CORSOrigin))
	r.Use(chimw.Timeout(d.RequestTimeout))

	r.Get("/healthz", health(d.Store))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Post("/sign_up", authHandler.SignUp)
	r.Post("/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Issuer, d.Log))
		noticeHandler.RegisterRoutes(r)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// health reports whether the store answers a ping
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /healthz [get]
func health(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			respond.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		respond.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// Run serves srv until ctx is cancelled, then drains connections for at most
// shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	log.Info("server listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("server stopped")
	return nil
}
