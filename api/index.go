// Package api is the serverless entry point: the runtime is built once per
// cold start and reused across invocations.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fintrack/internal/app"
)

var (
	buildOnce sync.Once
	runtime   *app.Runtime
	buildErr  error
)

func Handler(w http.ResponseWriter, r *http.Request) {
	buildOnce.Do(func() {
		runtime, buildErr = app.Build(app.Options{
			LoadDotEnv:    false,
			RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		})
	})

	if buildErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "application bootstrap failed"})
		return
	}

	runtime.Handler.ServeHTTP(w, r)
}
