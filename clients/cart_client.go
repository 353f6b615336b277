package clients

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/models"
)

// CartClient talks to the backend cart API. Every mutating call returns the
// full resulting cart. It never retries.
type CartClient struct {
	gateway *GatewayClient
}

func NewCartClient(gateway *GatewayClient) *CartClient {
	return &CartClient{gateway: gateway}
}

func (c *CartClient) GetCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	base, err := cartBase(owner)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodGet, base, owner, nil)
}

func (c *CartClient) AddItem(ctx context.Context, owner models.Owner, item models.AddItemInput) (*models.Cart, error) {
	base, err := cartBase(owner)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPost, base+"/items", owner, item)
}

func (c *CartClient) UpdateItem(ctx context.Context, owner models.Owner, productID string, quantity int) (*models.Cart, error) {
	base, err := cartBase(owner)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPut, base+"/items/"+url.PathEscape(productID), owner, models.UpdateItemInput{Quantity: quantity})
}

func (c *CartClient) RemoveItem(ctx context.Context, owner models.Owner, productID string) (*models.Cart, error) {
	base, err := cartBase(owner)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodDelete, base+"/items/"+url.PathEscape(productID), owner, nil)
}

func (c *CartClient) ClearCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	base, err := cartBase(owner)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodDelete, base, owner, nil)
}

// MergeGuestCart folds the guest cart of sessionID into the token owner's cart.
func (c *CartClient) MergeGuestCart(ctx context.Context, token, sessionID string) (*models.Cart, error) {
	if token == "" {
		return nil, apperrors.Validation("Sign in to merge your cart")
	}
	if sessionID == "" {
		return nil, apperrors.Validation("No guest session to merge")
	}
	return c.call(ctx, http.MethodPost, "/cart/merge", models.Owner{Token: token}, models.MergeInput{SessionID: sessionID})
}

func (c *CartClient) call(ctx context.Context, method, path string, owner models.Owner, payload interface{}) (*models.Cart, error) {
	var body io.Reader
	if payload != nil {
		b, err := BodyFromJSON(payload)
		if err != nil {
			return nil, err
		}
		body = b
	}

	headers := http.Header{}
	if owner.Authenticated() {
		headers.Set("Authorization", "Bearer "+owner.Token)
	}

	resp, err := c.gateway.Do(ctx, method, path, nil, headers, body)
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := DecodeEnvelope(resp, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func cartBase(owner models.Owner) (string, error) {
	if owner.Authenticated() {
		return "/cart", nil
	}
	if owner.SessionID == "" {
		return "", apperrors.Validation("Missing guest session")
	}
	return "/cart/guest/" + url.PathEscape(owner.SessionID), nil
}
