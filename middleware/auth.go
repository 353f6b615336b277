package middleware

import (
	"net/http"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/auth"

	"github.com/gin-gonic/gin"
)

const (
	TokenKey  = "auth_token"
	UserIDKey = "userID"

	TokenCookie = "token"
)

// OptionalAuth picks up a bearer token from the Authorization header or the
// token cookie. When the verifier has a secret, invalid tokens are rejected;
// without one the token is passed through for the backend to judge.
func OptionalAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if v, err := c.Cookie(TokenCookie); err == nil {
				token = v
			}
		}
		if token == "" {
			c.Next()
			return
		}

		if verifier.Enabled() {
			userID, err := verifier.UserID(token)
			if err != nil {
				apperrors.Abort(c, apperrors.API(http.StatusUnauthorized, "Your session has expired. Please sign in again."))
				return
			}
			c.Set(UserIDKey, userID)
		}
		c.Set(TokenKey, token)
		c.Next()
	}
}

// RequireAuth rejects requests without a verified user.
func RequireAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.UserID(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			apperrors.Abort(c, apperrors.ErrUnauthorized)
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetToken returns the bearer token attached by OptionalAuth, if any.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
