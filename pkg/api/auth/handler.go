// Package auth exposes the shared-secret login gate over HTTP.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"catalog_agent/pkg/api/respond"
	"catalog_agent/pkg/core/session"

	"go.uber.org/zap"
)

// CookieName carries the session token.
const CookieName = "catalog_session"

type LoginRequest struct {
	Secret string `json:"secret"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Handler holds dependencies for auth endpoints
type Handler struct {
	Sessions *session.Manager
	TTL      time.Duration
	logger   *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(sessions *session.Manager, ttl time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Sessions: sessions, TTL: ttl, logger: logger}
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.MethodNotAllowed(w)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	token, err := h.Sessions.Login(req.Secret)
	if err != nil {
		h.logger.Warn("login refused", zap.String("remote", r.RemoteAddr), zap.Error(err))
		respond.Error(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.TTL.Seconds()),
	})
	respond.JSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.MethodNotAllowed(w)
		return
	}
	if token := Token(r); token != "" {
		h.Sessions.Logout(token)
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// Require rejects requests without a live session.
func (h *Handler) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Sessions.Valid(Token(r)) {
			respond.Error(w, session.ErrNoSession)
			return
		}
		next(w, r)
	}
}

// Token reads the session token from the cookie or a bearer header.
func Token(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
