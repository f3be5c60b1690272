package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/Parthmh361/pure-harvest/internal/auth"
	"github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

// Context keys set by the authentication middleware.
const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// StreamTokenParam carries the token on websocket upgrades; browsers cannot
// set headers there.
const StreamTokenParam = "token"

// TokenValidator verifies bearer tokens. *auth.JWTService satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*iauth.Claims, error)
}

type tokenSource func(*gin.Context) string

// Auth requires a valid token in the Authorization header.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return authenticator(validator, headerToken)
}

// StreamAuth is Auth with a fallback to the token query parameter.
func StreamAuth(validator TokenValidator) gin.HandlerFunc {
	return authenticator(validator, headerToken, queryToken)
}

// RequireRole lets the request through when the authenticated role is one of
// roles. It runs after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = true
	}

	return func(c *gin.Context) {
		switch {
		case c.GetString(CtxUserIDKey) == "":
			deny(c, errors.ErrUnauthorized)
		case !allowed[c.GetString(CtxRoleKey)]:
			deny(c, errors.ErrForbidden)
		default:
			c.Next()
		}
	}
}

func authenticator(validator TokenValidator, sources ...tokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		for _, source := range sources {
			if token = source(c); token != "" {
				break
			}
		}
		if token == "" {
			deny(c, errors.ErrUnauthorized)
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			// expiry, signature and claim failures all look the same to callers
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			deny(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

func deny(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

func headerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func queryToken(c *gin.Context) string {
	return strings.TrimSpace(c.Query(StreamTokenParam))
}
