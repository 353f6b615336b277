package controllers

import (
	"net/http"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/logger"
	"scarlet-storefront/middleware"
	"scarlet-storefront/models"
	"scarlet-storefront/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CartController exposes a visitor's cart state to the web front end.
type CartController struct {
	registry *services.Registry
	logger   *zap.Logger
}

func NewCartController(registry *services.Registry, logger *zap.Logger) *CartController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartController{registry: registry, logger: logger}
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetSession handles GET /bff/session.
func (cc *CartController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"sessionId":     middleware.GetSessionID(c),
		"authenticated": middleware.GetToken(c) != "",
	}})
}

// GetCart handles GET /bff/cart.
func (cc *CartController) GetCart(c *gin.Context) {
	state, ok := cc.state(c)
	if !ok {
		return
	}
	cc.respond(c, http.StatusOK, state, nil)
}

// RefreshCart handles POST /bff/cart/refresh.
func (cc *CartController) RefreshCart(c *gin.Context) {
	state, ok := cc.state(c)
	if !ok {
		return
	}
	if err := state.Refresh(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context(), cc.logger).Warn("Cart refresh failed",
			zap.String("session_id", middleware.GetSessionID(c)), zap.Error(err))
	}
	// a failed load still yields a usable empty cart
	cc.respond(c, http.StatusOK, state, nil)
}

// AddItem handles POST /bff/cart/items.
func (cc *CartController) AddItem(c *gin.Context) {
	var req models.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.Validation("Invalid request body"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	state, ok := cc.state(c)
	if !ok {
		return
	}
	err := state.AddItem(c.Request.Context(), req)
	cc.respond(c, http.StatusOK, state, err)
}

// UpdateItem handles PUT /bff/cart/items/:productId.
func (cc *CartController) UpdateItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.Validation("quantity is required"))
		return
	}

	state, ok := cc.state(c)
	if !ok {
		return
	}
	err := state.UpdateItem(c.Request.Context(), c.Param("productId"), *req.Quantity)
	cc.respond(c, http.StatusOK, state, err)
}

// SetQuantity handles PATCH /bff/cart/items/:productId. The backend is
// updated once the shopper stops changing the quantity.
func (cc *CartController) SetQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.Validation("quantity is required"))
		return
	}

	state, ok := cc.state(c)
	if !ok {
		return
	}
	err := state.SetQuantity(c.Param("productId"), *req.Quantity)
	cc.respond(c, http.StatusAccepted, state, err)
}

// RemoveItem handles DELETE /bff/cart/items/:productId.
func (cc *CartController) RemoveItem(c *gin.Context) {
	state, ok := cc.state(c)
	if !ok {
		return
	}
	err := state.RemoveItem(c.Request.Context(), c.Param("productId"))
	cc.respond(c, http.StatusOK, state, err)
}

// ClearCart handles DELETE /bff/cart.
func (cc *CartController) ClearCart(c *gin.Context) {
	state, ok := cc.state(c)
	if !ok {
		return
	}
	err := state.ClearCart(c.Request.Context())
	cc.respond(c, http.StatusOK, state, err)
}

// Notifications handles GET /bff/notifications and drains the visitor's inbox.
func (cc *CartController) Notifications(c *gin.Context) {
	_, inbox, err := cc.registry.Acquire(c.Request.Context(), middleware.GetSessionID(c), middleware.GetToken(c))
	if err != nil {
		apperrors.Abort(c, apperrors.Internal("Request cancelled", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": inbox.Drain()})
}

func (cc *CartController) state(c *gin.Context) (*services.CartState, bool) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		apperrors.Abort(c, apperrors.Internal("Visitor session missing", nil))
		return nil, false
	}
	state, _, err := cc.registry.Acquire(c.Request.Context(), sessionID, middleware.GetToken(c))
	if err != nil {
		apperrors.Abort(c, apperrors.Internal("Request cancelled", err))
		return nil, false
	}
	return state, true
}

// respond writes the current view, wrapped in the error envelope when err is set.
func (cc *CartController) respond(c *gin.Context, status int, state *services.CartState, err error) {
	view := state.View()
	if err != nil {
		body := apperrors.Envelope(err)
		body["data"] = view
		c.JSON(apperrors.Status(err), body)
		return
	}
	c.JSON(status, gin.H{"success": true, "data": view})
}
