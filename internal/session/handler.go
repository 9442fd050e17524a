package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CookieConfig controls the attributes of the token cookies.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// CookieConfigFromEnv reads COOKIE_SECURE (default true) and takes the
// lifetimes from the token configuration.
func CookieConfigFromEnv(tc token.Config) CookieConfig {
	secure := true
	if v, err := strconv.ParseBool(os.Getenv("COOKIE_SECURE")); err == nil {
		secure = v
	}
	return CookieConfig{Secure: secure, AccessTTL: tc.AccessTTL, RefreshTTL: tc.RefreshTTL}
}

// Handler exposes login, logout, refresh and password change over HTTP.
type Handler struct {
	svc     *SessionService
	cookies CookieConfig
	logger  *zap.SugaredLogger
}

func NewHandler(svc *SessionService, cookies CookieConfig, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, cookies: cookies, logger: logger}
}

func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl / time.Second),
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, p *TokenPair) {
	http.SetCookie(w, h.cookie(AccessCookie, p.AccessToken, h.cookies.AccessTTL))
	http.SetCookie(w, h.cookie(RefreshCookie, p.RefreshToken, h.cookies.RefreshTTL))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(AccessCookie, "", 0))
	http.SetCookie(w, h.cookie(RefreshCookie, "", 0))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		h.writeError(w, err)
		return
	}
	h.setTokenCookies(w, &res.TokenPair)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized request"})
		return
	}
	if err := h.svc.Logout(r.Context(), claims.AccountID); err != nil {
		h.writeError(w, err)
		return
	}
	h.clearTokenCookies(w)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "user logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh takes the refresh token from its cookie, falling back to the JSON body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var incoming string
	if c, err := r.Cookie(RefreshCookie); err == nil {
		incoming = c.Value
	}
	if incoming == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		incoming = req.RefreshToken
	}
	pair, err := h.svc.Refresh(r.Context(), incoming)
	if err != nil {
		h.logger.Debugw("refresh failed", "err", err)
		h.writeError(w, err)
		return
	}
	h.setTokenCookies(w, pair)
	h.writeJSON(w, http.StatusOK, pair)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized request"})
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	err := h.svc.ChangePassword(r.Context(), claims.AccountID, req.OldPassword, req.NewPassword)
	if errors.Is(err, apperr.ErrInvalidCredentials) {
		// a wrong old password is a bad request here, not an authentication failure
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": apperr.Message(err)})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperr.Status(err), map[string]string{"error": apperr.Message(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
