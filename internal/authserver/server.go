// Package authserver is the server side of the login exchange: a chi router
// serving login, logout and session-check endpoints over a users table.
package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/storefront/internal/authrpc"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// SessionCookie names the cookie carrying the server session ID.
const SessionCookie = "storefront_session"

// Response messages.
const (
	msgMissingFields   = "Missing email/username or password"
	msgRequiredFields  = "Email and password are required"
	msgInvalidLogin    = "Invalid email/username or password"
	msgLoginSuccessful = "Login successful"
	msgLoggedOut       = "Logged out successfully"
)

// Server serves the authentication endpoints.
type Server struct {
	users    UserFinder
	sessions *SessionStore
	logger   *slog.Logger
	origins  []string
	secure   bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionStore replaces the session store.
func WithSessionStore(store *SessionStore) Option {
	return func(s *Server) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithAllowedOrigins enables CORS with credentials for the given origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secure = secure }
}

// New creates a server authenticating against users.
func New(users UserFinder, opts ...Option) *Server {
	s := &Server{
		users:    users,
		sessions: NewSessionStore(DefaultSessionTTL),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post(authrpc.LoginPath, s.handleLogin)
	r.Post(authrpc.LogoutPath, s.handleLogout)
	r.Get(authrpc.SessionPath, s.handleSession)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("auth server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("auth server stopped")
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authrpc.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.Identifier == nil || req.Password == nil {
		writeJSON(w, http.StatusBadRequest, authrpc.LoginResponse{Message: msgMissingFields})
		return
	}

	identifier := strings.TrimSpace(*req.Identifier)
	password := strings.TrimSpace(*req.Password)
	if identifier == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, authrpc.LoginResponse{Message: msgRequiredFields})
		return
	}

	user, err := s.users.FindActiveUser(r.Context(), types.IsEmail(identifier), identifier)
	if errors.Is(err, ErrUserNotFound) {
		writeJSON(w, http.StatusUnauthorized, authrpc.LoginResponse{Message: msgInvalidLogin})
		return
	}
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, authrpc.LoginResponse{Message: "Database error: " + err.Error()})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		writeJSON(w, http.StatusUnauthorized, authrpc.LoginResponse{Message: msgInvalidLogin})
		return
	}

	identity := types.SessionIdentity{
		ID:       types.UserIDFromInt(user.ID),
		Username: user.Username,
		Email:    user.Email,
		Name:     user.DisplayName(),
	}
	if old, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(old.Value)
	}
	http.SetCookie(w, s.cookie(s.sessions.Create(identity), 0))
	s.logger.Info("user logged in", "user", user.Username)

	writeJSON(w, http.StatusOK, authrpc.LoginResponse{
		Success: true,
		Message: msgLoginSuccessful,
		User:    &identity,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(ck.Value)
	}
	http.SetCookie(w, s.cookie("", -1))
	writeJSON(w, http.StatusOK, authrpc.LogoutResponse{Success: true, Message: msgLoggedOut})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := authrpc.SessionResponse{Success: true}
	if ck, err := r.Cookie(SessionCookie); err == nil {
		if identity, ok := s.sessions.Get(ck.Value); ok {
			resp.LoggedIn = true
			resp.User = &identity
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}
