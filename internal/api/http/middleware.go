package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"booksphere-backend/internal/config"
	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/security"

	"github.com/gorilla/mux"
)

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates requests according to the security level of the matched route.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		if route == nil {
			next.ServeHTTP(w, r)
			return
		}

		level := config.GetSecurityLevel(route.GetName())
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid token: %v", domain.ErrInvalidCredentials, err))
			return
		}

		if err := checkSecurityLevel(level, claims); err != nil {
			writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), claims.UserID, claims.Role)))
	})
}

func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: authorization token is not provided", domain.ErrInvalidCredentials)
	}
	token := header
	if len(token) >= 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: authorization token is empty", domain.ErrInvalidCredentials)
	}
	return token, nil
}

func checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) error {
	switch level {
	case config.SecurityAccess:
		if claims.Type != security.TokenTypeAccess {
			return fmt.Errorf("%w: access token required", domain.ErrForbidden)
		}
	case config.SecurityRefresh:
		if claims.Type != security.TokenTypeRefresh {
			return fmt.Errorf("%w: refresh token required", domain.ErrForbidden)
		}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request and turns handler panics into a 500.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				writeError(rec, r, fmt.Errorf("panic: %v", p))
			}
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}
