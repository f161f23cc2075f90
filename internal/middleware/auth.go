package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"hp-booking/internal/model"
	"hp-booking/pkg/apierror"
)

type sessionAuthenticator interface {
	Authenticate(tokenString string) (model.AuthClaims, error)
}

type cookieReader interface {
	Read(r *http.Request) (string, bool)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	authenticator sessionAuthenticator
	cookies       cookieReader
}

func NewAuthMiddleware(authenticator sessionAuthenticator, cookies cookieReader) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator, cookies: cookies}
}

// SessionToken returns the session cookie value, falling back to a bearer
// token for non-browser clients.
func (m *AuthMiddleware) SessionToken(r *http.Request) string {
	if value, ok := m.cookies.Read(r); ok {
		return value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticator.Authenticate(m.SessionToken(r))
		if err != nil {
			writeAuthError(w, apierror.Authentication("Not authenticated"))
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, &claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...model.Role) func(http.Handler) http.Handler {
	roleSet := map[model.Role]struct{}{}
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, apierror.Authentication("Not authenticated"))
				return
			}

			if _, exists := roleSet[claims.Role]; !exists {
				writeAuthError(w, apierror.Authorization("Insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

// WithClaims is used by tests and by handlers that authenticate on their own.
func WithClaims(ctx context.Context, claims model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, &claims)
}

func writeAuthError(w http.ResponseWriter, err *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}
