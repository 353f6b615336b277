package services

import (
	"context"
	"sync"
	"time"

	awspkg "scarlet-storefront/pkg/aws"
	"scarlet-storefront/session"

	"go.uber.org/zap"
)

// StateFactory builds the cart state of one visitor.
type StateFactory func(sessionID string, inbox *Inbox) *CartState

type visitor struct {
	state    *CartState
	inbox    *Inbox
	lastSeen time.Time
	ready    chan struct{}
}

// Registry keeps one CartState per visitor session and evicts idle visitors.
type Registry struct {
	factory StateFactory
	ttl     time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
	gauge    GaugeRecorder
	stop     chan struct{}
	done     chan struct{}
}

func NewRegistry(factory StateFactory, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Registry{
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.janitor()
	return r
}

// NewStateFactory wires the shared clients into per-visitor states. sinks,
// when set, builds the extra notification sinks of one visitor.
func NewStateFactory(remote CartRemote, catalog ProductCatalog, metrics MetricsRecorder, sinks func(sessionID string) Notifier, debounce time.Duration, logger *zap.Logger) StateFactory {
	return func(sessionID string, inbox *Inbox) *CartState {
		notifier := MultiNotifier{inbox}
		if sinks != nil {
			notifier = append(notifier, sinks(sessionID))
		}
		return NewCartState(Options{
			Remote:        remote,
			Catalog:       catalog,
			Session:       session.Fixed(sessionID),
			Notifier:      notifier,
			Metrics:       metrics,
			Logger:        logger.With(zap.String("session_id", sessionID)),
			DebounceDelay: debounce,
		})
	}
}

// Acquire returns the visitor's cart state, creating and loading it on first
// use, and aligns its authentication with token.
func (r *Registry) Acquire(ctx context.Context, sessionID, token string) (*CartState, *Inbox, error) {
	r.mu.Lock()
	v, ok := r.visitors[sessionID]
	if ok {
		v.lastSeen = time.Now()
		r.mu.Unlock()

		select {
		case <-v.ready:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if v.state.Token() != token {
			_ = v.state.SetAuth(ctx, token)
		}
		return v.state, v.inbox, nil
	}

	inbox := NewInbox(DefaultInboxSize)
	v = &visitor{
		state:    r.factory(sessionID, inbox),
		inbox:    inbox,
		lastSeen: time.Now(),
		ready:    make(chan struct{}),
	}
	r.visitors[sessionID] = v
	r.mu.Unlock()

	// mount like a fresh page: guest cart first, then whatever auth the request carries
	mountCtx := context.WithoutCancel(ctx)
	_ = v.state.Refresh(mountCtx)
	if token != "" {
		_ = v.state.SetAuth(mountCtx, token)
	}
	close(v.ready)

	r.logger.Debug("Visitor cart mounted", zap.String("session_id", sessionID), zap.Bool("authenticated", token != ""))
	return v.state, v.inbox, nil
}

// ReportTo publishes the number of live visitors to g after every eviction pass.
func (r *Registry) ReportTo(g GaugeRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauge = g
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

func (r *Registry) janitor() {
	defer close(r.done)
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Evict(time.Now().Add(-r.ttl))
		case <-r.stop:
			return
		}
	}
}

// Evict closes every visitor not seen since cutoff and returns how many went.
func (r *Registry) Evict(cutoff time.Time) int {
	r.mu.Lock()
	var idle []*visitor
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			idle = append(idle, v)
			delete(r.visitors, id)
		}
	}
	live, gauge := len(r.visitors), r.gauge
	r.mu.Unlock()

	for _, v := range idle {
		r.retire(context.Background(), v)
	}
	if gauge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := gauge.RecordGauge(ctx, awspkg.MetricActiveVisitors, float64(live), nil); err != nil {
			r.logger.Debug("Failed to report active visitors", zap.Error(err))
		}
		cancel()
	}
	if len(idle) > 0 {
		r.logger.Info("Evicted idle visitors", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Close stops the janitor and flushes every visitor's waiting edits.
func (r *Registry) Close(ctx context.Context) {
	close(r.stop)
	<-r.done

	r.mu.Lock()
	all := make([]*visitor, 0, len(r.visitors))
	for id, v := range r.visitors {
		all = append(all, v)
		delete(r.visitors, id)
	}
	r.mu.Unlock()

	for _, v := range all {
		r.retire(ctx, v)
	}
}

func (r *Registry) retire(ctx context.Context, v *visitor) {
	<-v.ready
	if err := v.state.FlushPending(ctx); err != nil {
		r.logger.Warn("Failed to flush pending cart edits", zap.Error(err))
	}
	v.state.Close()
}
