package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"notehub-backend/internal/apperr"
	"notehub-backend/internal/httpx"
	"notehub-backend/internal/models"
)

type contextKey string

const principalKey contextKey = "notehub_principal"

// Middleware authenticates requests and gates them by role. Authorization
// failures (403) are kept distinct from authentication failures (401).
type Middleware struct {
	tokens *Tokens
	logger *zap.Logger
}

func NewMiddleware(tokens *Tokens, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate requires an Authorization header of the exact shape
// "Bearer <token>" and puts the verified principal in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			httpx.Error(w, apperr.Wrap(apperr.KindUnauthenticated, "No token provided", ErrMissingToken))
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			httpx.Error(w, apperr.Wrap(apperr.KindUnauthenticated, "No token provided", ErrMissingToken))
			return
		}

		principal, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			message := "Invalid token"
			if errors.Is(err, ErrExpiredToken) {
				message = "Token expired"
			}
			httpx.Error(w, apperr.Wrap(apperr.KindUnauthenticated, message, err))
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only principals whose role matches exactly. There is no
// role hierarchy.
func (m *Middleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
				return
			}
			if principal.Role != role {
				httpx.Error(w, apperr.New(apperr.KindForbidden, "Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*Principal)
	return principal, ok
}

// WithPrincipal is for handler tests that bypass Authenticate.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
