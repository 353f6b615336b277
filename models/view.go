package models

import "github.com/shopspring/decimal"

// Status is the load state of a cart client.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusReady         Status = "ready"
)

type EnrichedItem struct {
	CartItem
	Product   *Product        `json:"product,omitempty"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the read model handed to consumers of a cart client.
type CartView struct {
	Status         Status          `json:"status"`
	Cart           *Cart           `json:"cart"`
	Items          []EnrichedItem  `json:"items"`
	ItemCount      int             `json:"itemCount"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	FormattedTotal string          `json:"formattedTotal"`
	Error          string          `json:"error,omitempty"`
	Pending        int             `json:"pending"`
}
