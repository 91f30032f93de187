package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nextreel/api"
	"nextreel/models"
	"nextreel/services/accounts"
	"nextreel/services/sessions"
)

// accountsService is the slice of the accounts service the handler needs.
type accountsService interface {
	Register(username, email, password string) (models.Account, error)
	Authenticate(username, password string) (models.Account, error)
	Get(id string) (models.Account, bool)
}

var _ accountsService = (*accounts.Service)(nil)

// sessionsService is the slice of the sessions service the handler needs.
type sessionsService interface {
	Create(accountID string, isMaster bool, userAgent, ipAddress string) (models.Session, error)
	Validate(token string) (models.Session, error)
	Revoke(token string) error
}

var _ sessionsService = (*sessions.Service)(nil)

// AuthHandler handles registration, login, and logout.
type AuthHandler struct {
	accounts accountsService
	sessions sessionsService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc accountsService, sessionsSvc sessionsService) *AuthHandler {
	return &AuthHandler{accounts: accountsSvc, sessions: sessionsSvc}
}

// RegisterRoutes attaches the auth endpoints, rate limited per client IP.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, limiter *api.IPRateLimiter) {
	auth := r.PathPrefix("/api/auth").Subrouter()
	if limiter != nil {
		auth.Use(limiter.Middleware)
	}
	auth.HandleFunc("/register", h.Register).Methods(http.MethodPost, http.MethodOptions)
	auth.HandleFunc("/login", h.Login).Methods(http.MethodPost, http.MethodOptions)
	auth.HandleFunc("/logout", h.Logout).Methods(http.MethodPost, http.MethodOptions)
	auth.HandleFunc("/me", h.Me).Methods(http.MethodGet, http.MethodOptions)
}

// RegisterRequest is the registration request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	IsMaster  bool   `json:"isMaster"`
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Register(req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, accounts.ErrUsernameExists):
		writeError(w, http.StatusConflict, "username already exists")
		return
	case errors.Is(err, accounts.ErrUsernameRequired), errors.Is(err, accounts.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Login authenticates a viewer and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session, err := h.sessions.Create(account.ID, account.IsMaster, r.Header.Get("User-Agent"), api.ClientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID: account.ID,
		Username:  account.Username,
		IsMaster:  account.IsMaster,
	})
}

// Logout revokes the current session. Ending the session also tears down
// the viewer's browsing state via the sessions revoke hook.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := api.ExtractToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no session token")
		return
	}

	if err := h.sessions.Revoke(token); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := api.ExtractToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	session, err := h.sessions.Validate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	account, ok := h.accounts.Get(session.AccountID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}

	writeJSON(w, http.StatusOK, account)
}
