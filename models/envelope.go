package models

import "encoding/json"

// Envelope is the response shape shared by the cart and catalog APIs.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorMessage returns the most specific failure message in the envelope.
func (e Envelope) ErrorMessage() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

// AddItemInput is the body of an add-to-cart call.
type AddItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// UpdateItemInput is the body of a quantity change.
type UpdateItemInput struct {
	Quantity int `json:"quantity"`
}

// MergeInput names the guest session whose cart is folded into the caller's.
type MergeInput struct {
	SessionID string `json:"sessionId" binding:"required"`
}
