package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"scarlet-storefront/cartapi/database"
	"scarlet-storefront/cartapi/services"
	"scarlet-storefront/models"
	awspkg "scarlet-storefront/pkg/aws"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock Repository ---

type mockRepo struct {
	*database.MemoryCartRepository
	failSave   bool
	failDelete bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{MemoryCartRepository: database.NewMemoryCartRepository()}
}

func (m *mockRepo) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	if m.failSave {
		return errors.New("connection reset")
	}
	return m.MemoryCartRepository.SaveCart(ctx, key, cart)
}

func (m *mockRepo) DeleteCart(ctx context.Context, key string) error {
	if m.failDelete {
		return errors.New("connection reset")
	}
	return m.MemoryCartRepository.DeleteCart(ctx, key)
}

func (m *mockRepo) put(key string, cart *models.Cart) {
	_ = m.MemoryCartRepository.SaveCart(context.Background(), key, cart)
}

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	published [][]byte
	attrs     []map[string]string
}

func (m *mockSNSPublisher) Publish(_ context.Context, _ string, message []byte, attributes map[string]string) error {
	m.published = append(m.published, message)
	m.attrs = append(m.attrs, attributes)
	return nil
}

func newService(repo database.CartRepository, pub *mockSNSPublisher) services.CartService {
	products := database.NewMemoryProductRepository(
		models.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10},
		models.Product{ID: "p2", Price: decimal.NewFromInt(250), Stock: 1},
	)
	var publisher awspkg.SNSPublisher
	if pub != nil {
		publisher = pub
	}
	return services.NewCartService(repo, products, publisher, "arn:topic", zap.NewNop())
}

var guest = services.Owner{SessionID: "s1"}
var user = services.Owner{UserID: "u1"}

func TestGetCart_EmptyWhenMissing(t *testing.T) {
	svc := newService(newMockRepo(), nil)

	cart, svcErr := svc.GetCart(context.Background(), guest)
	require.Nil(t, svcErr)
	assert.Equal(t, models.GuestOwner, cart.UserID)
	assert.Equal(t, "s1", cart.SessionID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)

	cart, svcErr = svc.GetCart(context.Background(), user)
	require.Nil(t, svcErr)
	assert.Equal(t, "u1", cart.UserID)
	assert.False(t, cart.IsGuest())
}

func TestGetCart_MissingOwner(t *testing.T) {
	svc := newService(newMockRepo(), nil)
	_, svcErr := svc.GetCart(context.Background(), services.Owner{})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
}

func TestAddItem_IncrementsExisting(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, nil)
	ctx := context.Background()

	_, svcErr := svc.AddItem(ctx, guest, models.AddItemInput{ProductID: "p1", Quantity: 2, Size: "M"})
	require.Nil(t, svcErr)
	cart, svcErr := svc.AddItem(ctx, guest, models.AddItemInput{ProductID: "p1", Quantity: 3})
	require.Nil(t, svcErr)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "M", cart.Items[0].Size)

	stored, _ := repo.GetCart(ctx, database.GuestKey("s1"))
	require.NotNil(t, stored)
	assert.Equal(t, 5, stored.Items[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	svc := newService(newMockRepo(), nil)
	_, svcErr := svc.AddItem(context.Background(), guest, models.AddItemInput{ProductID: "", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	_, svcErr = svc.AddItem(context.Background(), guest, models.AddItemInput{ProductID: "p1", Quantity: 0})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
}

func TestAddItem_StockLimit(t *testing.T) {
	svc := newService(newMockRepo(), nil)
	ctx := context.Background()

	_, svcErr := svc.AddItem(ctx, guest, models.AddItemInput{ProductID: "p2", Quantity: 1})
	require.Nil(t, svcErr)
	_, svcErr = svc.AddItem(ctx, guest, models.AddItemInput{ProductID: "p2", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusConflict, svcErr.StatusCode)
	assert.Equal(t, "Only 1 left in stock", svcErr.Message)

	// unknown products are not stock checked
	_, svcErr = svc.AddItem(ctx, guest, models.AddItemInput{ProductID: "zzz", Quantity: 50})
	assert.Nil(t, svcErr)
}

func TestAddItem_SaveFailure(t *testing.T) {
	repo := newMockRepo()
	repo.failSave = true
	svc := newService(repo, nil)

	_, svcErr := svc.AddItem(context.Background(), guest, models.AddItemInput{ProductID: "p1", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
}

func TestUpdateItem(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.UserKey("u1"), &models.Cart{UserID: "u1", Items: []models.CartItem{{ProductID: "p1", Quantity: 1}}})
	svc := newService(repo, nil)
	ctx := context.Background()

	cart, svcErr := svc.UpdateItem(ctx, user, "p1", 4)
	require.Nil(t, svcErr)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	_, svcErr = svc.UpdateItem(ctx, user, "p1", 11)
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusConflict, svcErr.StatusCode)

	_, svcErr = svc.UpdateItem(ctx, user, "nope", 1)
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)

	// below one removes
	cart, svcErr = svc.UpdateItem(ctx, user, "p1", 0)
	require.Nil(t, svcErr)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.GuestKey("s1"), &models.Cart{UserID: models.GuestOwner, SessionID: "s1",
		Items: []models.CartItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}}})
	svc := newService(repo, nil)
	ctx := context.Background()

	cart, svcErr := svc.RemoveItem(ctx, guest, "p1")
	require.Nil(t, svcErr)
	assert.Equal(t, []string{"p2"}, cart.ProductIDs())

	cart, svcErr = svc.RemoveItem(ctx, guest, "p1")
	require.Nil(t, svcErr)
	assert.Equal(t, []string{"p2"}, cart.ProductIDs())
}

func TestClearCart(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.UserKey("u1"), &models.Cart{ID: "c1", UserID: "u1", Items: []models.CartItem{{ProductID: "p1", Quantity: 3}}})
	svc := newService(repo, nil)

	cart, svcErr := svc.ClearCart(context.Background(), user)
	require.Nil(t, svcErr)
	assert.Equal(t, "c1", cart.ID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestMergeGuestCart_SumsAndDeletesGuest(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.UserKey("u1"), &models.Cart{ID: "c1", UserID: "u1", Items: []models.CartItem{
		{ProductID: "p1", Quantity: 1, Size: "M"},
	}})
	repo.put(database.GuestKey("s1"), &models.Cart{UserID: models.GuestOwner, SessionID: "s1", Items: []models.CartItem{
		{ProductID: "p1", Quantity: 2, Size: "L", Color: "red"},
		{ProductID: "p3", Quantity: 1},
	}})
	pub := &mockSNSPublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	cart, svcErr := svc.MergeGuestCart(ctx, "u1", "s1")
	require.Nil(t, svcErr)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, models.CartItem{ProductID: "p1", Quantity: 3, Size: "M", Color: "red"}, cart.Items[0])
	assert.Equal(t, "p3", cart.Items[1].ProductID)

	gone, _ := repo.GetCart(ctx, database.GuestKey("s1"))
	assert.Nil(t, gone)

	require.Len(t, pub.published, 1)
	var event services.CartMergedEvent
	require.NoError(t, json.Unmarshal(pub.published[0], &event))
	assert.Equal(t, services.EventCartMerged, event.Event)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, 2, event.Merged)
	assert.Equal(t, 4, event.ItemCount)
	assert.Equal(t, map[string]string{"event": services.EventCartMerged}, pub.attrs[0])
}

func TestMergeGuestCart_CapsAtStock(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.UserKey("u1"), &models.Cart{ID: "c1", UserID: "u1", Items: []models.CartItem{
		{ProductID: "p1", Quantity: 6},
		{ProductID: "p2", Quantity: 1},
	}})
	repo.put(database.GuestKey("s1"), &models.Cart{UserID: models.GuestOwner, SessionID: "s1", Items: []models.CartItem{
		{ProductID: "p1", Quantity: 7},
		{ProductID: "p2", Quantity: 2},
	}})
	svc := newService(repo, nil)

	cart, svcErr := svc.MergeGuestCart(context.Background(), "u1", "s1")
	require.Nil(t, svcErr)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 10, cart.Items[0].Quantity)
	assert.Equal(t, 1, cart.Items[1].Quantity)

	// the capped cart accepts the next in-stock update
	_, svcErr = svc.UpdateItem(context.Background(), services.Owner{UserID: "u1"}, "p1", 9)
	assert.Nil(t, svcErr)
}

func TestMergeGuestCart_NoGuestCart(t *testing.T) {
	repo := newMockRepo()
	pub := &mockSNSPublisher{}
	svc := newService(repo, pub)

	cart, svcErr := svc.MergeGuestCart(context.Background(), "u1", "s1")
	require.Nil(t, svcErr)
	assert.Equal(t, "u1", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Empty(t, pub.published)
}

func TestMergeGuestCart_DeleteFailureStillSucceeds(t *testing.T) {
	repo := newMockRepo()
	repo.put(database.GuestKey("s1"), &models.Cart{UserID: models.GuestOwner, SessionID: "s1", Items: []models.CartItem{{ProductID: "p1", Quantity: 1}}})
	repo.failDelete = true
	svc := newService(repo, nil)

	cart, svcErr := svc.MergeGuestCart(context.Background(), "u1", "s1")
	require.Nil(t, svcErr)
	assert.Equal(t, 1, cart.ItemCount())
}

func TestMergeGuestCart_RequiresIDs(t *testing.T) {
	svc := newService(newMockRepo(), nil)

	_, svcErr := svc.MergeGuestCart(context.Background(), "", "s1")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusUnauthorized, svcErr.StatusCode)

	_, svcErr = svc.MergeGuestCart(context.Background(), "u1", "")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
}

func TestProducts(t *testing.T) {
	svc := newService(newMockRepo(), nil)
	products, svcErr := svc.Products(context.Background(), []string{"p2", "missing", "p1"})
	require.Nil(t, svcErr)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
}
