package models

import "time"

// GuestOwner is the UserID the backend stamps on carts owned by an anonymous session.
const GuestOwner = "guest"

type CartItem struct {
	ProductID string `json:"productId" dynamodbav:"productId"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity"`
	Size      string `json:"size,omitempty" dynamodbav:"size,omitempty"`
	Color     string `json:"color,omitempty" dynamodbav:"color,omitempty"`
}

type Cart struct {
	ID        string     `json:"id" dynamodbav:"id"`
	UserID    string     `json:"userId" dynamodbav:"userId"`
	SessionID string     `json:"sessionId,omitempty" dynamodbav:"sessionId,omitempty"`
	Items     []CartItem `json:"items" dynamodbav:"items"`
	CreatedAt time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Owner identifies who a cart call acts for.
type Owner struct {
	Token     string
	SessionID string
}

func (o Owner) Authenticated() bool {
	return o.Token != ""
}

// EmptyCart is the placeholder cart shown when nothing could be loaded.
func EmptyCart(owner Owner) *Cart {
	c := &Cart{Items: []CartItem{}}
	if !owner.Authenticated() {
		c.UserID = GuestOwner
		c.SessionID = owner.SessionID
	}
	return c
}

// IsGuest reports whether the cart is owned by an anonymous session.
func (c *Cart) IsGuest() bool {
	return c != nil && c.UserID == GuestOwner
}

// Clone returns a deep copy of c.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// ItemCount sums the quantities, skipping non-positive ones.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, it := range c.Items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}

// Find returns the index of productID in Items, or -1.
func (c *Cart) Find(productID string) int {
	if c == nil {
		return -1
	}
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddQuantity increments an existing entry or appends a new one.
// Non-empty size and color on item replace the stored variant.
func (c *Cart) AddQuantity(item CartItem) {
	if item.Quantity < 1 {
		return
	}
	if i := c.Find(item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		if item.Size != "" {
			c.Items[i].Size = item.Size
		}
		if item.Color != "" {
			c.Items[i].Color = item.Color
		}
		return
	}
	c.Items = append(c.Items, item)
}

// SetQuantity sets the quantity of productID; quantity < 1 removes the entry.
// It reports whether an entry was found.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	i := c.Find(productID)
	if i < 0 {
		return false
	}
	if quantity < 1 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = quantity
	return true
}

func (c *Cart) RemoveItem(productID string) bool {
	return c.SetQuantity(productID, 0)
}

// ProductIDs lists the distinct product ids in cart order.
func (c *Cart) ProductIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Items))
	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
