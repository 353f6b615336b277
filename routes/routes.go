package routes

import (
	"scarlet-storefront/auth"
	"scarlet-storefront/controllers"
	"scarlet-storefront/middleware"
	"scarlet-storefront/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterStorefrontRoutes mounts the storefront cart API under /bff.
func RegisterStorefrontRoutes(r *gin.Engine, cc *controllers.CartController, cookies *session.CookieStore, verifier *auth.Verifier, logger *zap.Logger) {
	r.GET("/health", controllers.Health("storefront"))

	bff := r.Group("/bff")
	bff.Use(middleware.VisitorSession(cookies, logger), middleware.OptionalAuth(verifier))
	bff.GET("/session", cc.GetSession)
	bff.GET("/notifications", cc.Notifications)

	cart := bff.Group("/cart")
	cart.GET("", cc.GetCart)
	cart.DELETE("", cc.ClearCart)
	cart.POST("/refresh", cc.RefreshCart)
	cart.POST("/items", cc.AddItem)
	cart.PUT("/items/:productId", cc.UpdateItem)
	cart.PATCH("/items/:productId", cc.SetQuantity)
	cart.DELETE("/items/:productId", cc.RemoveItem)
}
