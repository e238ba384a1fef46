// Package app wires configuration, storage, and HTTP routing into a single
// runnable handler. Both cmd/api and the serverless entry build through it;
// nothing in the service relies on ambient singletons.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fintrack/internal/auth"
	"fintrack/internal/category"
	"fintrack/internal/db"
	"fintrack/internal/kvstore"
	"fintrack/internal/maintenance"
	"fintrack/internal/observability"
	"fintrack/internal/record"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *zap.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	privateKeyPath, err := mustEnv("JWT_PRIVATE_KEY_PATH")
	if err != nil {
		return nil, err
	}
	publicKeyPath, err := mustEnv("JWT_PUBLIC_KEY_PATH")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", zap.Error(err))
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokens, err := auth.LoadTokenService(
		privateKeyPath,
		publicKeyPath,
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 10080),
	)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("load token service: %w", err)
	}

	kv := kvstore.New(database)
	tracker := auth.NewAttemptTracker(kv)
	hasher := auth.NewHasher(envIntOrDefault("BCRYPT_COST", 10))

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, tracker, hasher, tokens)
	authService.WithMaxAttempts(int64(envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5)))
	authHandler := auth.NewHandler(authService, envIntOrDefault("SESSION_COOKIE_MAX_AGE_SECONDS", 86400))

	categoryHandler := category.NewHandler(category.NewRepository(database))
	recordHandler := record.NewHandler(record.NewRepository(database))

	cleanupHandler := maintenance.NewCleanupHandler(
		kv,
		logger,
		os.Getenv("CRON_SECRET"),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	protected := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(tokens, authRepo, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/register/{$}", authHandler.Register)
	mux.HandleFunc("POST /users/login/{$}", authHandler.Login)
	mux.HandleFunc("POST /users/logout/{$}", authHandler.Logout)

	mux.Handle("GET /categories/{$}", protected(categoryHandler.List))
	mux.Handle("POST /categories/{$}", protected(categoryHandler.Create))
	mux.Handle("GET /categories/{id}", protected(categoryHandler.Get))
	mux.Handle("PUT /categories/{id}", protected(categoryHandler.Update))
	mux.Handle("DELETE /categories/{id}", protected(categoryHandler.Delete))

	mux.Handle("GET /financial_records/{$}", protected(recordHandler.List))
	mux.Handle("POST /financial_records/{$}", protected(recordHandler.Create))
	mux.Handle("GET /financial_records/summary/{$}", protected(recordHandler.Summary))
	mux.Handle("GET /financial_records/{id}", protected(recordHandler.Get))
	mux.Handle("PUT /financial_records/{id}", protected(recordHandler.Update))
	mux.Handle("PATCH /financial_records/{id}", protected(recordHandler.Patch))
	mux.Handle("DELETE /financial_records/{id}", protected(recordHandler.Delete))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			_ = logger.Sync()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
