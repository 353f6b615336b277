package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/format"
	"scarlet-storefront/models"
	awspkg "scarlet-storefront/pkg/aws"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultDebounceDelay = 500 * time.Millisecond

type Options struct {
	Remote        CartRemote
	Catalog       ProductCatalog
	Session       SessionProvider
	Notifier      Notifier
	Metrics       MetricsRecorder
	Logger        *zap.Logger
	DebounceDelay time.Duration
}

// CartState is the client-side view of one shopper's cart. Local edits are
// shown immediately and reconciled with the server's answer.
//
// Every remote call takes a sequence number. base is the newest confirmed
// server cart (sequence applied); the displayed cart is base with the still
// pending mutations replayed on top. Responses older than applied are
// discarded.
type CartState struct {
	remote    CartRemote
	catalog   ProductCatalog
	session   SessionProvider
	notifier  Notifier
	metrics   MetricsRecorder
	logger    *zap.Logger
	validate  *validator.Validate
	debouncer *Debouncer

	bgCtx  context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	status      models.Status
	token       string
	base        *models.Cart
	cart        *models.Cart
	lastErr     error
	products    map[string]models.Product
	joinedCount int
	joinGen     uint64
	pending     []*Mutation
	debounced   map[string]*Mutation
	seq         uint64
	applied     uint64
	loadSeq     uint64
	merging     bool
	// closed once the running merge settled; edits wait on it
	mergeDone chan struct{}
}

func NewCartState(opts Options) *CartState {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CartState{
		remote:    opts.Remote,
		catalog:   opts.Catalog,
		session:   opts.Session,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		validate:  validator.New(),
		debouncer: NewDebouncer(opts.DebounceDelay),
		bgCtx:     ctx,
		cancel:    cancel,
		status:    models.StatusUninitialized,
		products:  make(map[string]models.Product),
		debounced: make(map[string]*Mutation),
	}
}

// Refresh loads the cart of the current owner. A failed load still ends in
// the ready state, with an empty cart and the error recorded; the error is
// returned for logging only.
func (s *CartState) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.status = models.StatusLoading
	n := s.nextSeq()
	s.loadSeq = n
	owner := s.owner()
	s.mu.Unlock()

	start := time.Now()
	cart, err := s.remote.GetCart(ctx, owner)
	s.latency(awspkg.MetricCartLoads, time.Since(start), owner)

	s.mu.Lock()
	if n == s.loadSeq {
		s.status = models.StatusReady
	}
	if n <= s.applied {
		s.mu.Unlock()
		s.count(awspkg.MetricStaleResponses, map[string]string{"Op": "load"})
		return err
	}
	s.applied = n
	s.dropSentThrough(n)
	if err != nil {
		s.base = models.EmptyCart(owner)
		s.cart = replay(s.base, s.pending)
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Warn("Failed to load cart",
			zap.String("session_id", owner.SessionID),
			zap.Bool("authenticated", owner.Authenticated()),
			zap.Error(err))
		s.count(awspkg.MetricCartLoadFailures, ownerDims(owner))
		s.notify(ctx, models.LevelWarning, "We couldn't load your cart. Pull to refresh or try again shortly.")
		return err
	}
	s.base = normalize(cart)
	s.cart = replay(s.base, s.pending)
	s.lastErr = nil
	s.mu.Unlock()

	s.syncProducts(ctx)
	return nil
}

// AddItem adds quantity units of a product, incrementing an existing entry.
func (s *CartState) AddItem(ctx context.Context, in models.AddItemInput) error {
	in.ProductID = strings.TrimSpace(in.ProductID)
	if err := s.validate.Struct(in); err != nil {
		return apperrors.Validation(validationMessage(err))
	}
	// a waiting quantity edit for this product goes out first
	s.flushProduct(ctx, in.ProductID)

	return s.mutate(ctx, &Mutation{
		Kind:      MutationAdd,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Size:      in.Size,
		Color:     in.Color,
	})
}

// UpdateItem sets the quantity of a product; a quantity below one removes it.
func (s *CartState) UpdateItem(ctx context.Context, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return apperrors.Validation("productId is required")
	}
	s.discardDebounced(productID)

	kind := MutationUpdate
	if quantity < 1 {
		kind = MutationRemove
	}
	return s.mutate(ctx, &Mutation{Kind: kind, ProductID: productID, Quantity: quantity})
}

func (s *CartState) RemoveItem(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return apperrors.Validation("productId is required")
	}
	s.discardDebounced(productID)
	return s.mutate(ctx, &Mutation{Kind: MutationRemove, ProductID: productID})
}

func (s *CartState) ClearCart(ctx context.Context) error {
	s.discardAllDebounced()
	return s.mutate(ctx, &Mutation{Kind: MutationClear})
}

// SetQuantity shows the new quantity at once and sends a single update with
// the last value once edits for the product have paused.
func (s *CartState) SetQuantity(productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return apperrors.Validation("productId is required")
	}

	s.mu.Lock()
	if m, ok := s.debounced[productID]; ok {
		m.Quantity = quantity
	} else {
		if s.cart.Find(productID) < 0 {
			s.mu.Unlock()
			return apperrors.Validation("That item is no longer in your cart")
		}
		m := &Mutation{
			Kind:      MutationSet,
			ProductID: productID,
			Quantity:  quantity,
			Snapshot:  s.cart.Clone(),
		}
		s.track(m)
		s.debounced[productID] = m
	}
	s.cart = replay(s.base, s.pending)
	s.mu.Unlock()

	s.debouncer.Schedule(productID, func() {
		_ = s.fire(s.bgCtx, productID)
	})
	return nil
}

// FlushPending sends every waiting quantity edit now.
func (s *CartState) FlushPending(ctx context.Context) error {
	s.debouncer.StopAll()

	s.mu.Lock()
	ids := make([]string, 0, len(s.debounced))
	for id := range s.debounced {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.fire(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetAuth records an authentication change. Signing in while a guest cart is
// shown merges it into the account exactly once; signing out drops the
// account cart and reloads the guest cart of this device.
func (s *CartState) SetAuth(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token != "" && s.Token() != token {
		// unsent edits belong to the outgoing owner
		_ = s.FlushPending(ctx)
	}

	s.mu.Lock()
	prev := s.token
	if prev == token {
		s.mu.Unlock()
		return nil
	}
	s.token = token
	s.fence()

	switch {
	case token == "":
		s.base = models.EmptyCart(s.owner())
		s.cart = s.base.Clone()
		s.products = make(map[string]models.Product)
		s.joinedCount = 0
		s.joinGen++
		s.lastErr = nil
		s.mu.Unlock()
		s.logger.Info("Shopper signed out, reloading guest cart")
		return s.Refresh(ctx)

	case prev == "" && s.cart.IsGuest() && !s.merging:
		s.merging = true
		s.mergeDone = make(chan struct{})
		s.status = models.StatusLoading
		n := s.nextSeq()
		s.loadSeq = n
		sessionID := s.session.GetOrCreate()
		s.mu.Unlock()
		return s.merge(ctx, token, sessionID, n)

	default:
		s.mu.Unlock()
		return s.Refresh(ctx)
	}
}

func (s *CartState) merge(ctx context.Context, token, sessionID string, n uint64) error {
	defer s.endMerge()
	cart, err := s.remote.MergeGuestCart(ctx, token, sessionID)

	s.mu.Lock()
	s.merging = false
	if n <= s.applied {
		if n == s.loadSeq {
			s.status = models.StatusReady
		}
		s.mu.Unlock()
		s.count(awspkg.MetricStaleResponses, map[string]string{"Op": "merge"})
		return err
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to merge guest cart", zap.String("session_id", sessionID), zap.Error(err))
		s.count(awspkg.MetricCartMergeFailed, nil)
		s.notify(ctx, models.LevelWarning, "We couldn't bring over the items from your guest cart. Showing your saved cart instead.")
		return s.Refresh(ctx)
	}
	s.applied = n
	s.dropSentThrough(n)
	s.base = normalize(cart)
	s.cart = replay(s.base, s.pending)
	s.lastErr = nil
	if n == s.loadSeq {
		s.status = models.StatusReady
	}
	s.mu.Unlock()

	s.logger.Info("Merged guest cart into account", zap.String("session_id", sessionID))
	s.count(awspkg.MetricCartMerges, nil)
	s.notify(ctx, models.LevelSuccess, "Your guest cart has been added to your account.")
	s.syncProducts(ctx)
	return nil
}

func (s *CartState) endMerge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mergeDone != nil {
		close(s.mergeDone)
		s.mergeDone = nil
	}
}

// awaitMerge holds an edit until a running merge settled, so the edit lands
// on the merged cart.
func (s *CartState) awaitMerge(ctx context.Context) error {
	s.mu.Lock()
	done := s.mergeDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apperrors.Network(ctx.Err())
	}
}

// Close stops waiting quantity edits and background work.
func (s *CartState) Close() {
	s.debouncer.StopAll()
	s.cancel()
}

func (s *CartState) View() models.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := models.CartView{
		Status:     s.status,
		Items:      []models.EnrichedItem{},
		TotalPrice: decimal.Zero,
		Pending:    len(s.pending),
	}
	if s.lastErr != nil {
		v.Error = apperrors.Message(s.lastErr)
	}
	if s.cart != nil {
		v.Cart = s.cart.Clone()
		for _, it := range s.cart.Items {
			e := models.EnrichedItem{CartItem: it, LineTotal: decimal.Zero}
			if p, ok := s.products[it.ProductID]; ok {
				product := p
				e.Product = &product
				if it.Quantity > 0 {
					e.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
				}
			}
			v.TotalPrice = v.TotalPrice.Add(e.LineTotal)
			v.Items = append(v.Items, e)
		}
	}
	v.ItemCount = s.cart.ItemCount()
	v.FormattedTotal = format.Taka(v.TotalPrice)
	return v
}

func (s *CartState) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *CartState) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Cart returns a copy of the displayed cart, nil before the first load.
func (s *CartState) Cart() *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *CartState) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

func (s *CartState) TotalPrice() decimal.Decimal {
	return s.View().TotalPrice
}

// Err is the error of the last failed load or mutation, cleared on success.
func (s *CartState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *CartState) mutate(ctx context.Context, m *Mutation) error {
	if err := s.awaitMerge(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	m.Snapshot = s.cart.Clone()
	s.track(m)
	m.Seq = s.nextSeq()
	m.sent = true
	s.cart = m.Apply(s.cart)
	owner := s.owner()
	s.mu.Unlock()

	s.syncProducts(ctx)
	return s.settle(ctx, m, owner)
}

// settle sends m and reconciles the displayed cart with the outcome.
func (s *CartState) settle(ctx context.Context, m *Mutation, owner models.Owner) error {
	dims := map[string]string{"Kind": string(m.Kind)}
	start := time.Now()
	cart, err := m.send(ctx, s.remote, owner)
	s.latency(awspkg.MetricCartMutations, time.Since(start), owner)

	s.mu.Lock()
	s.removePending(m)
	if err != nil {
		s.lastErr = err
		if m.first && len(s.pending) == 0 && s.applied == m.appliedAt {
			s.cart = m.Snapshot.Clone()
		} else {
			s.cart = replay(s.base, s.pending)
		}
		s.mu.Unlock()

		s.logger.Warn("Cart update failed, rolled back",
			zap.String("kind", string(m.Kind)),
			zap.String("product_id", m.ProductID),
			zap.Uint64("seq", m.Seq),
			zap.Error(err))
		s.count(awspkg.MetricCartRollbacks, dims)
		s.notify(ctx, models.LevelError, apperrors.Message(err))
		s.syncProducts(ctx)
		return err
	}

	if m.Seq > s.applied {
		s.applied = m.Seq
		s.dropSentThrough(m.Seq)
		s.base = normalize(cart)
		s.lastErr = nil
	} else {
		s.count(awspkg.MetricStaleResponses, dims)
	}
	s.cart = replay(s.base, s.pending)
	s.mu.Unlock()

	s.syncProducts(ctx)
	return nil
}

// fire sends the waiting quantity edit of productID, if any.
func (s *CartState) fire(ctx context.Context, productID string) error {
	if err := s.awaitMerge(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	m, ok := s.debounced[productID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.debounced, productID)
	if m.Quantity < 1 {
		m.Kind = MutationRemove
	}
	m.Seq = s.nextSeq()
	m.sent = true
	owner := s.owner()
	s.mu.Unlock()

	return s.settle(ctx, m, owner)
}

func (s *CartState) flushProduct(ctx context.Context, productID string) {
	s.debouncer.Cancel(productID)
	_ = s.fire(ctx, productID)
}

func (s *CartState) discardDebounced(productID string) {
	s.debouncer.Cancel(productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.debounced[productID]; ok {
		delete(s.debounced, productID)
		s.removePending(m)
		s.cart = replay(s.base, s.pending)
	}
}

func (s *CartState) discardAllDebounced() {
	s.debouncer.StopAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.debounced {
		delete(s.debounced, id)
		s.removePending(m)
	}
	s.cart = replay(s.base, s.pending)
}

// track appends m to the pending list. Callers hold mu.
func (s *CartState) track(m *Mutation) {
	m.first = len(s.pending) == 0
	m.appliedAt = s.applied
	s.pending = append(s.pending, m)
}

// fence makes every response to an earlier request stale. Callers hold mu.
func (s *CartState) fence() {
	s.debouncer.StopAll()
	s.applied = s.nextSeq()
	s.pending = nil
	s.debounced = make(map[string]*Mutation)
}

func (s *CartState) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *CartState) dropSentThrough(n uint64) {
	kept := s.pending[:0]
	for _, m := range s.pending {
		if !m.sent || m.Seq > n {
			kept = append(kept, m)
		}
	}
	s.pending = kept
}

func (s *CartState) removePending(target *Mutation) {
	for i, m := range s.pending {
		if m == target {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *CartState) owner() models.Owner {
	return models.Owner{Token: s.token, SessionID: s.session.GetOrCreate()}
}

// syncProducts refreshes the catalog join when the number of distinct items
// changed since the last join.
func (s *CartState) syncProducts(ctx context.Context) {
	if s.catalog == nil {
		return
	}

	s.mu.Lock()
	ids := s.cart.ProductIDs()
	if len(ids) == s.joinedCount {
		s.mu.Unlock()
		return
	}
	s.joinedCount = len(ids)
	s.joinGen++
	gen := s.joinGen
	s.mu.Unlock()

	if len(ids) == 0 {
		s.mu.Lock()
		if gen == s.joinGen {
			s.products = make(map[string]models.Product)
		}
		s.mu.Unlock()
		return
	}

	products, err := s.catalog.ProductsByIDs(ctx, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.joinGen {
		return
	}
	if err != nil {
		// retry on the next change
		s.joinedCount = -1
		s.logger.Warn("Failed to load product details for cart", zap.Strings("product_ids", ids), zap.Error(err))
		return
	}
	s.products = products
}

func (s *CartState) notify(ctx context.Context, level models.Level, message string) {
	if s.notifier == nil || message == "" {
		return
	}
	s.notifier.Notify(ctx, models.Notification{Level: level, Message: message, At: time.Now()})
}

func (s *CartState) count(metric string, dims map[string]string) {
	if s.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, dims)
	}()
}

func (s *CartState) latency(metric string, d time.Duration, owner models.Owner) {
	if s.metrics == nil {
		return
	}
	dims := ownerDims(owner)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordLatency(ctx, metric, d, dims)
	}()
}

func ownerDims(owner models.Owner) map[string]string {
	if owner.Authenticated() {
		return map[string]string{"Owner": "user"}
	}
	return map[string]string{"Owner": "guest"}
}

func normalize(cart *models.Cart) *models.Cart {
	if cart == nil {
		return &models.Cart{Items: []models.CartItem{}}
	}
	out := cart.Clone()
	if out.Items == nil {
		out.Items = []models.CartItem{}
	}
	return out
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid cart request"
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "ProductID":
		return "productId is required"
	case "Quantity":
		return "quantity must be at least 1"
	}
	return fe.Error()
}
