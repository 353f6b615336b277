package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scarlet-storefront/cartapi/database"
	"scarlet-storefront/models"
	awspkg "scarlet-storefront/pkg/aws"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Owner is either a signed-in user or a guest session.
type Owner struct {
	UserID    string
	SessionID string
}

func (o Owner) key() string {
	if o.UserID != "" {
		return database.UserKey(o.UserID)
	}
	return database.GuestKey(o.SessionID)
}

// CartMergedEvent is published after a guest cart was folded into a user cart.
type CartMergedEvent struct {
	Event     string    `json:"event"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	CartID    string    `json:"cartId"`
	Merged    int       `json:"merged"`
	ItemCount int       `json:"itemCount"`
	Timestamp time.Time `json:"timestamp"`
}

const EventCartMerged = "cart.merged"

// CartService defines the cart business logic behind the REST API.
type CartService interface {
	GetCart(ctx context.Context, owner Owner) (*models.Cart, *ServiceError)
	AddItem(ctx context.Context, owner Owner, input models.AddItemInput) (*models.Cart, *ServiceError)
	UpdateItem(ctx context.Context, owner Owner, productID string, quantity int) (*models.Cart, *ServiceError)
	RemoveItem(ctx context.Context, owner Owner, productID string) (*models.Cart, *ServiceError)
	ClearCart(ctx context.Context, owner Owner) (*models.Cart, *ServiceError)
	MergeGuestCart(ctx context.Context, userID, sessionID string) (*models.Cart, *ServiceError)
	Products(ctx context.Context, ids []string) ([]models.Product, *ServiceError)
}

type cartServiceImpl struct {
	repo        database.CartRepository
	products    database.ProductRepository
	snsClient   awspkg.SNSPublisher
	snsTopicArn string
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewCartService creates a new CartService. products and snsClient may be nil.
func NewCartService(
	repo database.CartRepository,
	products database.ProductRepository,
	snsClient awspkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cartServiceImpl{
		repo:        repo,
		products:    products,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, owner Owner) (*models.Cart, *ServiceError) {
	return s.load(ctx, owner)
}

func (s *cartServiceImpl) AddItem(ctx context.Context, owner Owner, input models.AddItemInput) (*models.Cart, *ServiceError) {
	if err := s.validate.Struct(input); err != nil {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "productId and a quantity of at least 1 are required"}
	}

	cart, svcErr := s.load(ctx, owner)
	if svcErr != nil {
		return nil, svcErr
	}

	want := input.Quantity
	if i := cart.Find(input.ProductID); i >= 0 {
		want += cart.Items[i].Quantity
	}
	if svcErr := s.checkStock(ctx, input.ProductID, want); svcErr != nil {
		return nil, svcErr
	}

	cart.AddQuantity(models.CartItem{
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Size:      input.Size,
		Color:     input.Color,
	})
	return s.save(ctx, owner, cart)
}

// UpdateItem sets the quantity of an item; quantity < 1 removes it.
func (s *cartServiceImpl) UpdateItem(ctx context.Context, owner Owner, productID string, quantity int) (*models.Cart, *ServiceError) {
	if productID == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "productId is required"}
	}
	if quantity < 1 {
		return s.RemoveItem(ctx, owner, productID)
	}

	cart, svcErr := s.load(ctx, owner)
	if svcErr != nil {
		return nil, svcErr
	}
	if cart.Find(productID) < 0 {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Item not found in cart"}
	}
	if svcErr := s.checkStock(ctx, productID, quantity); svcErr != nil {
		return nil, svcErr
	}

	cart.SetQuantity(productID, quantity)
	return s.save(ctx, owner, cart)
}

// RemoveItem is idempotent: removing an absent product returns the cart unchanged.
func (s *cartServiceImpl) RemoveItem(ctx context.Context, owner Owner, productID string) (*models.Cart, *ServiceError) {
	cart, svcErr := s.load(ctx, owner)
	if svcErr != nil {
		return nil, svcErr
	}
	if !cart.RemoveItem(productID) {
		return cart, nil
	}
	return s.save(ctx, owner, cart)
}

func (s *cartServiceImpl) ClearCart(ctx context.Context, owner Owner) (*models.Cart, *ServiceError) {
	cart, svcErr := s.load(ctx, owner)
	if svcErr != nil {
		return nil, svcErr
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}
	cart.Items = []models.CartItem{}
	return s.save(ctx, owner, cart)
}

// MergeGuestCart adds the guest cart of sessionID into the user's cart and
// deletes the guest cart. Quantities are summed; the user's size and color
// win, guest values only fill blanks. Summed lines are capped at the stock
// left, and dropped when none is.
func (s *cartServiceImpl) MergeGuestCart(ctx context.Context, userID, sessionID string) (*models.Cart, *ServiceError) {
	if userID == "" {
		return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	if sessionID == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "sessionId is required"}
	}

	user := Owner{UserID: userID}
	cart, svcErr := s.load(ctx, user)
	if svcErr != nil {
		return nil, svcErr
	}

	guestKey := database.GuestKey(sessionID)
	guest, err := s.repo.GetCart(ctx, guestKey)
	if err != nil {
		s.logger.Error("Failed to load guest cart", zap.String("session_id", sessionID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to load guest cart"}
	}
	if guest == nil || len(guest.Items) == 0 {
		return cart, nil
	}

	touched := make([]string, 0, len(guest.Items))
	for _, it := range guest.Items {
		if it.Quantity < 1 {
			continue
		}
		touched = append(touched, it.ProductID)
		i := cart.Find(it.ProductID)
		if i < 0 {
			cart.Items = append(cart.Items, it)
			continue
		}
		cart.Items[i].Quantity += it.Quantity
		if cart.Items[i].Size == "" {
			cart.Items[i].Size = it.Size
		}
		if cart.Items[i].Color == "" {
			cart.Items[i].Color = it.Color
		}
	}

	s.capToStock(ctx, cart, touched)

	merged, svcErr := s.save(ctx, user, cart)
	if svcErr != nil {
		return nil, svcErr
	}
	if err := s.repo.DeleteCart(ctx, guestKey); err != nil {
		// the user cart already holds the items; a leftover guest cart expires on its own
		s.logger.Warn("Failed to delete merged guest cart", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.publishMerged(ctx, merged, sessionID, len(guest.Items))
	s.logger.Info("Guest cart merged",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.Int("merged_items", len(guest.Items)),
	)
	return merged, nil
}

func (s *cartServiceImpl) Products(ctx context.Context, ids []string) ([]models.Product, *ServiceError) {
	if s.products == nil || len(ids) == 0 {
		return []models.Product{}, nil
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load products", zap.Strings("ids", ids), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to load products"}
	}
	return products, nil
}

func (s *cartServiceImpl) load(ctx context.Context, owner Owner) (*models.Cart, *ServiceError) {
	if owner.UserID == "" && owner.SessionID == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "Missing cart owner"}
	}
	cart, err := s.repo.GetCart(ctx, owner.key())
	if err != nil {
		s.logger.Error("Failed to get cart", zap.String("cart_key", owner.key()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to get cart"}
	}
	if cart == nil {
		cart = newCart(owner)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func (s *cartServiceImpl) save(ctx context.Context, owner Owner, cart *models.Cart) (*models.Cart, *ServiceError) {
	if err := s.repo.SaveCart(ctx, owner.key(), cart); err != nil {
		s.logger.Error("Failed to save cart", zap.String("cart_key", owner.key()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to save cart"}
	}
	return cart, nil
}

// checkStock rejects a line quantity above the product's stock. Products the
// catalog does not know are accepted.
func (s *cartServiceImpl) checkStock(ctx context.Context, productID string, quantity int) *ServiceError {
	if s.products == nil {
		return nil
	}
	products, err := s.products.FindByIDs(ctx, []string{productID})
	if err != nil {
		s.logger.Warn("Stock check skipped", zap.String("product_id", productID), zap.Error(err))
		return nil
	}
	if len(products) == 0 {
		return nil
	}
	stock := products[0].Stock
	if quantity <= stock {
		return nil
	}
	if stock <= 0 {
		return &ServiceError{StatusCode: http.StatusConflict, Message: "Out of stock"}
	}
	return &ServiceError{StatusCode: http.StatusConflict, Message: fmt.Sprintf("Only %d left in stock", stock)}
}

func (s *cartServiceImpl) capToStock(ctx context.Context, cart *models.Cart, ids []string) {
	if s.products == nil || len(ids) == 0 {
		return
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Stock check skipped for merge", zap.Strings("product_ids", ids), zap.Error(err))
		return
	}
	for _, p := range products {
		i := cart.Find(p.ID)
		if i < 0 || cart.Items[i].Quantity <= p.Stock {
			continue
		}
		s.logger.Info("Merged quantity capped at stock",
			zap.String("product_id", p.ID),
			zap.Int("requested", cart.Items[i].Quantity),
			zap.Int("stock", p.Stock),
		)
		cart.SetQuantity(p.ID, p.Stock)
	}
}

func (s *cartServiceImpl) publishMerged(ctx context.Context, cart *models.Cart, sessionID string, merged int) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	payload, err := json.Marshal(CartMergedEvent{
		Event:     EventCartMerged,
		UserID:    cart.UserID,
		SessionID: sessionID,
		CartID:    cart.ID,
		Merged:    merged,
		ItemCount: cart.ItemCount(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("Failed to marshal merge event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload, map[string]string{"event": EventCartMerged}); err != nil {
		s.logger.Error("Failed to publish merge event", zap.String("user_id", cart.UserID), zap.Error(err))
	}
}

func newCart(owner Owner) *models.Cart {
	now := time.Now().UTC()
	cart := &models.Cart{
		ID:        uuid.New().String(),
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner.UserID != "" {
		cart.UserID = owner.UserID
	} else {
		cart.UserID = models.GuestOwner
		cart.SessionID = owner.SessionID
	}
	return cart
}
