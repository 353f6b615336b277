package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/models"

	"github.com/shopspring/decimal"
)

// --- Fake cart backend ---

type fakeRemote struct {
	mu     sync.Mutex
	carts  map[string]*models.Cart
	failOn map[string]error
	calls  []string

	// holds, when set for a product, park AddItem after the server applied it
	holds   map[string]chan struct{}
	entered chan string

	// mergeHold, when set, parks MergeGuestCart after the server merged
	mergeHold chan struct{}

	// strictUpdate answers updates of absent products with 404 like cartapi
	strictUpdate bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		carts:   make(map[string]*models.Cart),
		failOn:  make(map[string]error),
		holds:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

func key(owner models.Owner) string {
	if owner.Authenticated() {
		return "user:" + owner.Token
	}
	return "guest:" + owner.SessionID
}

func (f *fakeRemote) seed(k string, items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Cart{ID: k, Items: items}
	if len(k) > 6 && k[:6] == "guest:" {
		c.UserID = models.GuestOwner
		c.SessionID = k[6:]
	} else {
		c.UserID = k
	}
	f.carts[k] = c
}

func (f *fakeRemote) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, op)
		return
	}
	f.failOn[op] = err
}

func (f *fakeRemote) callsOf(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) >= len(op) && c[:len(op)] == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) cart(k string) *models.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[k]; ok {
		return c.Clone()
	}
	return nil
}

// begin records the call and returns the stored cart for owner, creating it.
func (f *fakeRemote) begin(op, detail string, owner models.Owner) (*models.Cart, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s %s %s", op, key(owner), detail))
	if err, ok := f.failOn[op]; ok {
		return nil, err
	}
	k := key(owner)
	c, ok := f.carts[k]
	if !ok {
		c = models.EmptyCart(owner)
		c.ID = k
		if owner.Authenticated() {
			c.UserID = k
		}
		f.carts[k] = c
	}
	return c, nil
}

func (f *fakeRemote) GetCart(_ context.Context, owner models.Owner) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.begin("GetCart", "", owner)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (f *fakeRemote) AddItem(_ context.Context, owner models.Owner, item models.AddItemInput) (*models.Cart, error) {
	f.mu.Lock()
	c, err := f.begin("AddItem", fmt.Sprintf("%s=%d", item.ProductID, item.Quantity), owner)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	c.AddQuantity(models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity, Size: item.Size, Color: item.Color})
	out := c.Clone()
	hold := f.holds[item.ProductID]
	f.mu.Unlock()

	if hold != nil {
		f.entered <- item.ProductID
		<-hold
	}
	return out, nil
}

func (f *fakeRemote) UpdateItem(_ context.Context, owner models.Owner, productID string, quantity int) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.begin("UpdateItem", fmt.Sprintf("%s=%d", productID, quantity), owner)
	if err != nil {
		return nil, err
	}
	if !c.SetQuantity(productID, quantity) && f.strictUpdate {
		return nil, errItemNotFound
	}
	return c.Clone(), nil
}

func (f *fakeRemote) RemoveItem(_ context.Context, owner models.Owner, productID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.begin("RemoveItem", productID, owner)
	if err != nil {
		return nil, err
	}
	c.RemoveItem(productID)
	return c.Clone(), nil
}

func (f *fakeRemote) ClearCart(_ context.Context, owner models.Owner) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.begin("ClearCart", "", owner)
	if err != nil {
		return nil, err
	}
	c.Items = []models.CartItem{}
	return c.Clone(), nil
}

func (f *fakeRemote) MergeGuestCart(_ context.Context, token, sessionID string) (*models.Cart, error) {
	f.mu.Lock()
	user, err := f.begin("MergeGuestCart", sessionID, models.Owner{Token: token})
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if guest, ok := f.carts["guest:"+sessionID]; ok {
		for _, it := range guest.Items {
			user.AddQuantity(it)
		}
		delete(f.carts, "guest:"+sessionID)
	}
	out := user.Clone()
	hold := f.mergeHold
	f.mu.Unlock()

	if hold != nil {
		f.entered <- "merge"
		<-hold
	}
	return out, nil
}

// --- Fake catalog ---

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]models.Product
	calls    int
	err      error
}

func newFakeCatalog(prices map[string]string) *fakeCatalog {
	products := make(map[string]models.Product, len(prices))
	for id, p := range prices {
		products[id] = models.Product{ID: id, Title: "Product " + id, Price: decimal.RequireFromString(p)}
	}
	return &fakeCatalog{products: products}
}

func (c *fakeCatalog) ProductsByIDs(_ context.Context, ids []string) (map[string]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]models.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *fakeCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) levels() []models.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Level, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Level)
	}
	return out
}

var errOutOfStock = apperrors.API(409, "Only 1 left in stock")

var errItemNotFound = apperrors.API(404, "Item not found in cart")

var errOffline = apperrors.Network(errors.New("dial tcp: connection refused"))
