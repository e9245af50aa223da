package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "noticeboard-backend/docs"
	"noticeboard-backend/internal/auth"
	"noticeboard-backend/internal/config"
	"noticeboard-backend/internal/events"
	"noticeboard-backend/internal/ingest"
	"noticeboard-backend/internal/logging"
	"noticeboard-backend/internal/metrics"
	"noticeboard-backend/internal/server"
	"noticeboard-backend/internal/storage"
	"noticeboard-backend/internal/storage/memory"
	"noticeboard-backend/internal/storage/mongostore"
	"noticeboard-backend/internal/storage/postgres"
)

// @title Noticeboard API
// @version 1.0
// @description Per-user notice board with bcrypt sign-up and JWT bearer authentication.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Prefix the token with "Bearer "
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer logCloser.Close()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher

		if cfg.AuditEvents {
			audit := ingest.NewAuditConsumer(natsPublisher.JetStream(), log, collector)
			if err := audit.Start(ctx); err != nil {
				return fmt.Errorf("start audit consumer: %w", err)
			}
			defer audit.Stop()
		}
	}

	issuer, err := auth.NewIssuer(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.Deps{
		Store:          store,
		Issuer:         issuer,
		Hasher:         auth.NewBcryptHasher(cfg.BcryptCost),
		Publisher:      publisher,
		Log:            log,
		Metrics:        collector,
		Gatherer:       reg,
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.Run(ctx, srv, cfg.ShutdownTimeout, log)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info("connected to database", slog.String("driver", cfg.StoreDriver))
		return store, nil
	case config.DriverMongo:
		store, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		log.Info("connected to database", slog.String("driver", cfg.StoreDriver))
		return store, nil
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
