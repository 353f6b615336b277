package routes

import (
	"scarlet-storefront/auth"
	"scarlet-storefront/cartapi/controllers"
	"scarlet-storefront/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterCartRoutes sets up the user, guest and catalog routes.
func RegisterCartRoutes(r *gin.Engine, cc *controllers.CartController, verifier *auth.Verifier) {
	r.GET("/products", cc.ListProducts)

	// Guest carts are addressed by session id and need no auth
	guest := r.Group("/cart/guest/:sessionId")
	guest.GET("", cc.GetCart)
	guest.DELETE("", cc.ClearCart)
	guest.POST("/items", cc.AddItem)
	guest.PUT("/items/:productId", cc.UpdateItem)
	guest.DELETE("/items/:productId", cc.RemoveItem)

	user := r.Group("/cart")
	user.Use(middleware.RequireAuth(verifier))
	user.GET("", cc.GetCart)
	user.DELETE("", cc.ClearCart)
	user.POST("/items", cc.AddItem)
	user.PUT("/items/:productId", cc.UpdateItem)
	user.DELETE("/items/:productId", cc.RemoveItem)
	user.POST("/merge", cc.MergeGuestCart)
}
