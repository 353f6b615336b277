package middleware

import (
	"scarlet-storefront/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const SessionIDKey = "session_id"

// VisitorSession resolves the visitor's anonymous session id from the session
// cookie, issuing a new cookie on first visit.
func VisitorSession(store *session.CookieStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := session.NewIdentity(store.Bind(c.Writer, c.Request), session.RequestSignature(c.Request), log)
		c.Set(SessionIDKey, ident.GetOrCreate())
		c.Next()
	}
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
