// Package maintenance exposes the cron-invoked cleanup endpoint that reaps
// expired counter/lockout entries from the key-value store.
package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fintrack/internal/kvstore"
)

type CleanupHandler struct {
	store      *kvstore.Store
	logger     *zap.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(store *kvstore.Store, logger *zap.Logger, cronSecret string, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		store:      store,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unauthorized"})
		return
	}

	purged, err := h.store.PurgeExpired(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("kv_cleanup_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "cleanup failed"})
		return
	}

	h.logger.Info("kv_cleanup_completed", zap.Int64("purged_entries", purged))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"purged_entries": purged,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
