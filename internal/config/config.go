package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

var ErrMissingSecret = errors.New("SECRET_KEY is required")

// Config is loaded once at startup and handed to the components that need it.
type Config struct {
	Port            string
	SecretKey       string
	TokenTTL        time.Duration
	BcryptCost      int
	StoreDriver     string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	NATSURL         string
	AuditEvents     bool
	CORSOrigin      string
	LogLevel        string
	LogFormat       string
	LogFile         string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		return Config{}, ErrMissingSecret
	}

	tokenTTL, err := getDuration("TOKEN_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cost, err := getInt("BCRYPT_COST", 10)
	if err != nil {
		return Config{}, err
	}
	audit, err := getBool("AUDIT_EVENTS", false)
	if err != nil {
		return Config{}, err
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres))
	switch driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}

	return Config{
		Port:            getEnv("PORT", "8000"),
		SecretKey:       secret,
		TokenTTL:        tokenTTL,
		BcryptCost:      cost,
		StoreDriver:     driver,
		DatabaseURL:     getEnv("DATABASE_URL", buildDSN()),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "noticeboard"),
		NATSURL:         os.Getenv("NATS_URL"),
		AuditEvents:     audit,
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func buildDSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" port=" + getEnv("DB_PORT", "5432") +
		" user=" + getEnv("DB_USER", "notice_user") +
		" password=" + getEnv("DB_PASSWORD", "notice_pass") +
		" dbname=" + getEnv("DB_NAME", "noticeboard") +
		" sslmode=" + getEnv("DB_SSLMODE", "disable")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
