package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
)

const (
	maxJSONBodyBytes = 1 << 20

	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 5
	maxPasswordLen = 20
)

// SessionCookieName is the cookie carrying the session token. Its max-age
// is configured independently of the token's own expiry.
const SessionCookieName = "access_token"

type Handler struct {
	service      *Service
	cookieMaxAge int
}

func NewHandler(service *Service, cookieMaxAge int) *Handler {
	return &Handler{service: service, cookieMaxAge: cookieMaxAge}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Register(r.Context(), body.Username, body.Password); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			writeError(w, http.StatusBadRequest, "username already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountLocked):
			writeError(w, http.StatusForbidden, "account temporarily locked, try again later")
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, ErrStoreUnavailable):
			sentry.CaptureException(err)
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// Logout clears the session cookie. Tokens are stateless, so there is no
// server-side session to tear down.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return credentialsRequest{}, false
	}

	// Bounds are character counts, so multibyte usernames are measured in
	// runes rather than bytes.
	body.Username = strings.TrimSpace(body.Username)
	if n := utf8.RuneCountInString(body.Username); n < minUsernameLen || n > maxUsernameLen {
		writeError(w, http.StatusUnprocessableEntity, "username must be between 3 and 20 characters")
		return credentialsRequest{}, false
	}
	if n := utf8.RuneCountInString(body.Password); n < minPasswordLen || n > maxPasswordLen {
		writeError(w, http.StatusUnprocessableEntity, "password must be between 5 and 20 characters")
		return credentialsRequest{}, false
	}

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
