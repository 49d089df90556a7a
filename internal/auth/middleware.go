package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// Define a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key used to store the verified user in the context
	UserContextKey contextKey = "user"
)

type AuthMiddleware struct {
	service *Service
	handler *Handler
}

func NewAuthMiddleware(service *Service, handler *Handler) *AuthMiddleware {
	return &AuthMiddleware{
		service: service,
		handler: handler,
	}
}

// RequireAuth verifies the bearer token against the service and attaches
// the resolved user to the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.service.Verify(c.Request.Context(), BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			m.handler.respondError(c, "authenticate", err)
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), UserContextKey, user))
		c.Set(string(UserContextKey), user)
		c.Next()
	}
}

// GetUserFromContext returns the user attached by RequireAuth.
func GetUserFromContext(ctx context.Context) (*UserSummary, error) {
	user, ok := ctx.Value(UserContextKey).(*UserSummary)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Anything else yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
