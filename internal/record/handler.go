package record

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"fintrack/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type recordRequest struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	CategoryID  int64     `json:"category_id"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	records, err := h.repo.List(r.Context(), userID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list financial records")
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	body, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	rec, err := h.repo.Create(r.Context(), Record{
		UserID:      userID,
		CategoryID:  body.CategoryID,
		Type:        body.Type,
		Description: body.Description,
		Amount:      body.Amount,
		Date:        body.Date,
	})
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "category not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create financial record")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.repo.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Financial record %d not found", id))
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get financial record")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	body, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	if _, err := h.repo.Get(r.Context(), id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Financial record %d not found", id))
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update financial record")
		return
	}

	err := h.repo.Update(r.Context(), Record{
		ID:          id,
		UserID:      userID,
		CategoryID:  body.CategoryID,
		Type:        body.Type,
		Description: body.Description,
		Amount:      body.Amount,
		Date:        body.Date,
	})
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "category not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update financial record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Patch merges only the fields present in the request body onto the stored
// record, then persists the result as a full update.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var patch Patch
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if patch.Type != nil && !validType(*patch.Type) {
		writeError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		return
	}
	if patch.Amount != nil && *patch.Amount < 0 {
		writeError(w, http.StatusUnprocessableEntity, "amount must not be negative")
		return
	}

	rec, err := h.repo.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Financial record %d not found", id))
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update financial record")
		return
	}

	patch.ApplyTo(&rec)

	if err := h.repo.Update(r.Context(), rec); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "category not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update financial record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Financial record %d not found", id))
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete financial record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	start, ok := parsePeriodBound(w, r.URL.Query().Get("start"), false)
	if !ok {
		return
	}
	end, ok := parsePeriodBound(w, r.URL.Query().Get("end"), true)
	if !ok {
		return
	}

	summary, err := h.repo.Summarize(r.Context(), userID, start, end)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to summarize financial records")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (recordRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body recordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return recordRequest{}, false
	}

	if !validType(body.Type) {
		writeError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		return recordRequest{}, false
	}
	if body.Amount < 0 {
		writeError(w, http.StatusUnprocessableEntity, "amount must not be negative")
		return recordRequest{}, false
	}
	if body.CategoryID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "category_id is required")
		return recordRequest{}, false
	}
	if body.Date.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, "date is required")
		return recordRequest{}, false
	}

	return body, true
}

// parsePeriodBound accepts RFC 3339 timestamps or plain dates; a plain end
// date covers the whole day.
func parsePeriodBound(w http.ResponseWriter, value string, endOfDay bool) (sql.NullTime, bool) {
	if value == "" {
		return sql.NullTime{}, true
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return sql.NullTime{Time: t.UTC(), Valid: true}, true
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid period bound, use RFC 3339 or YYYY-MM-DD")
		return sql.NullTime{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "financial record not found")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
