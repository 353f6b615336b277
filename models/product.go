package models

import "github.com/shopspring/decimal"

// Product is the catalog data joined onto cart items for display and pricing.
type Product struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images,omitempty"`
	Stock  int             `json:"stock"`
}
