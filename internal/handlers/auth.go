package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/i-gras/apiserver/internal/auth"
	"github.com/i-gras/apiserver/internal/services"
	"github.com/i-gras/apiserver/types"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "igras_session"

// AuthHandler provides cookie-session authentication endpoints.
type AuthHandler struct {
	userService   *services.UserService
	codec         *auth.Codec
	secureCookies bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// secureCookies should be true when running behind HTTPS in production.
func NewAuthHandler(userService *services.UserService, codec *auth.Codec, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		codec:         codec,
		secureCookies: secureCookies,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Get("/session", handler.Session)
}

// RequireSession enforces a valid session cookie and injects the
// current user into the request context.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.sessionUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAdmin rejects requests whose context user is not an admin.
// It must run after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !strings.EqualFold(user.Role, "admin") {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates a new user account and starts a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email, and password are required")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		var vErr services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.startSession(w, user)
	writeJSON(w, http.StatusOK, SessionResponse{User: &user})
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	h.startSession(w, user)
	writeJSON(w, http.StatusOK, SessionResponse{User: &user})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session returns the current user derived from the cookie, or null.
// A missing or invalid cookie is not an error.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(r)
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{User: nil})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{User: &user})
}

// sessionUser verifies the session cookie and re-fetches the user so
// the response reflects the current record, not the token snapshot.
// Every failure collapses to "no session".
func (h *AuthHandler) sessionUser(r *http.Request) (types.PublicUser, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return types.PublicUser{}, false
	}

	claims, ok := h.codec.Verify(cookie.Value)
	if !ok {
		return types.PublicUser{}, false
	}

	// Deleted user or store failure both collapse to "no session".
	user, err := h.userService.GetByID(r.Context(), claims.Subject)
	if err != nil {
		return types.PublicUser{}, false
	}
	return user, true
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user types.PublicUser) {
	token, _ := h.codec.Issue(user)
	http.SetCookie(w, h.sessionCookie(token, int(h.codec.TTL().Seconds())))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse wraps the sanitized user record. User is null when
// no valid session exists.
type SessionResponse struct {
	User *types.PublicUser `json:"user"`
}
