package controllers

import (
	"net/http"
	"strings"

	"scarlet-storefront/cartapi/services"
	"scarlet-storefront/middleware"
	"scarlet-storefront/models"
	"scarlet-storefront/session"

	"github.com/gin-gonic/gin"
)

// CartController handles the cart REST API for users and guest sessions.
type CartController struct {
	cartService services.CartService
}

// NewCartController creates a new CartController.
func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// GetCart handles GET /cart and GET /cart/guest/:sessionId.
func (cc *CartController) GetCart(ctx *gin.Context) {
	owner, ok := cartOwner(ctx)
	if !ok {
		return
	}
	cart, svcErr := cc.cartService.GetCart(ctx.Request.Context(), owner)
	respond(ctx, cart, svcErr)
}

// AddItem handles POST .../items. Adding an existing product increments it.
func (cc *CartController) AddItem(ctx *gin.Context) {
	owner, ok := cartOwner(ctx)
	if !ok {
		return
	}
	var req models.AddItemInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "Invalid request")
		return
	}
	cart, svcErr := cc.cartService.AddItem(ctx.Request.Context(), owner, req)
	respond(ctx, cart, svcErr)
}

// UpdateItem handles PUT .../items/:productId.
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	owner, ok := cartOwner(ctx)
	if !ok {
		return
	}
	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "quantity is required")
		return
	}
	cart, svcErr := cc.cartService.UpdateItem(ctx.Request.Context(), owner, ctx.Param("productId"), *req.Quantity)
	respond(ctx, cart, svcErr)
}

// RemoveItem handles DELETE .../items/:productId.
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	owner, ok := cartOwner(ctx)
	if !ok {
		return
	}
	cart, svcErr := cc.cartService.RemoveItem(ctx.Request.Context(), owner, ctx.Param("productId"))
	respond(ctx, cart, svcErr)
}

// ClearCart handles DELETE /cart and DELETE /cart/guest/:sessionId.
func (cc *CartController) ClearCart(ctx *gin.Context) {
	owner, ok := cartOwner(ctx)
	if !ok {
		return
	}
	cart, svcErr := cc.cartService.ClearCart(ctx.Request.Context(), owner)
	respond(ctx, cart, svcErr)
}

// MergeGuestCart handles POST /cart/merge.
func (cc *CartController) MergeGuestCart(ctx *gin.Context) {
	var req models.MergeInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "sessionId is required")
		return
	}
	cart, svcErr := cc.cartService.MergeGuestCart(ctx.Request.Context(), middleware.GetUserID(ctx), req.SessionID)
	respond(ctx, cart, svcErr)
}

// ListProducts handles GET /products?ids=a,b.
func (cc *CartController) ListProducts(ctx *gin.Context) {
	var ids []string
	for _, id := range strings.Split(ctx.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	products, svcErr := cc.cartService.Products(ctx.Request.Context(), ids)
	if svcErr != nil {
		fail(ctx, svcErr.StatusCode, svcErr.Message)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"products": products}})
}

// cartOwner resolves the guest session from the path or the authenticated user.
func cartOwner(ctx *gin.Context) (services.Owner, bool) {
	if sid := ctx.Param("sessionId"); sid != "" {
		if !session.IsGuestID(sid) {
			fail(ctx, http.StatusBadRequest, "Invalid guest session")
			return services.Owner{}, false
		}
		return services.Owner{SessionID: sid}, true
	}
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		fail(ctx, http.StatusUnauthorized, "Unauthorized")
		return services.Owner{}, false
	}
	return services.Owner{UserID: userID}, true
}

func respond(ctx *gin.Context, cart *models.Cart, svcErr *services.ServiceError) {
	if svcErr != nil {
		fail(ctx, svcErr.StatusCode, svcErr.Message)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": cart})
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   gin.H{"code": codeFor(status), "message": message},
	})
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}
