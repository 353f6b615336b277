package services

import (
	"context"
	"net/http"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/models"
)

type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationUpdate MutationKind = "update"
	MutationRemove MutationKind = "remove"
	MutationClear  MutationKind = "clear"
	// MutationSet is a debounced quantity edit; it re-adds an entry an
	// earlier edit in the same burst removed.
	MutationSet MutationKind = "set"
)

// Mutation is one local cart edit awaiting server confirmation. Snapshot is
// the displayed cart just before the edit was applied.
type Mutation struct {
	Seq       uint64
	Kind      MutationKind
	ProductID string
	Quantity  int
	Size      string
	Color     string
	Snapshot  *models.Cart

	// Seq is only meaningful once sent; debounced edits wait unsent.
	sent bool

	// Snapshot equals the confirmed cart while nothing else was pending at
	// creation and no response has been applied since.
	first     bool
	appliedAt uint64
}

// Apply returns a copy of cart with the edit applied.
func (m *Mutation) Apply(cart *models.Cart) *models.Cart {
	out := cart.Clone()
	if out == nil {
		out = &models.Cart{}
	}
	if out.Items == nil {
		out.Items = []models.CartItem{}
	}

	switch m.Kind {
	case MutationAdd:
		out.AddQuantity(models.CartItem{ProductID: m.ProductID, Quantity: m.Quantity, Size: m.Size, Color: m.Color})
	case MutationUpdate:
		out.SetQuantity(m.ProductID, m.Quantity)
	case MutationRemove:
		out.RemoveItem(m.ProductID)
	case MutationClear:
		out.Items = []models.CartItem{}
	case MutationSet:
		if !out.SetQuantity(m.ProductID, m.Quantity) {
			out.AddQuantity(models.CartItem{ProductID: m.ProductID, Quantity: m.Quantity})
		}
	}
	return out
}

// send performs the remote call matching the edit.
func (m *Mutation) send(ctx context.Context, remote CartRemote, owner models.Owner) (*models.Cart, error) {
	switch m.Kind {
	case MutationAdd:
		return remote.AddItem(ctx, owner, models.AddItemInput{
			ProductID: m.ProductID,
			Quantity:  m.Quantity,
			Size:      m.Size,
			Color:     m.Color,
		})
	case MutationUpdate:
		if m.Quantity < 1 {
			return remote.RemoveItem(ctx, owner, m.ProductID)
		}
		return remote.UpdateItem(ctx, owner, m.ProductID, m.Quantity)
	case MutationRemove:
		return remote.RemoveItem(ctx, owner, m.ProductID)
	case MutationSet:
		if m.Quantity < 1 {
			return remote.RemoveItem(ctx, owner, m.ProductID)
		}
		cart, err := remote.UpdateItem(ctx, owner, m.ProductID, m.Quantity)
		if apperrors.Status(err) == http.StatusNotFound {
			return remote.AddItem(ctx, owner, models.AddItemInput{ProductID: m.ProductID, Quantity: m.Quantity})
		}
		return cart, err
	default:
		return remote.ClearCart(ctx, owner)
	}
}

// replay applies pending on top of base.
func replay(base *models.Cart, pending []*Mutation) *models.Cart {
	out := base.Clone()
	for _, m := range pending {
		out = m.Apply(out)
	}
	return out
}
