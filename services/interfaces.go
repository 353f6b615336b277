package services

import (
	"context"
	"time"

	"scarlet-storefront/models"
)

// CartRemote is the backend cart API.
type CartRemote interface {
	GetCart(ctx context.Context, owner models.Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner models.Owner, item models.AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, owner models.Owner, productID string, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner models.Owner, productID string) (*models.Cart, error)
	ClearCart(ctx context.Context, owner models.Owner) (*models.Cart, error)
	MergeGuestCart(ctx context.Context, token, sessionID string) (*models.Cart, error)
}

// ProductCatalog supplies prices and titles for cart items.
type ProductCatalog interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// SessionProvider yields the anonymous session id of the current device.
type SessionProvider interface {
	GetOrCreate() string
}

// Notifier delivers transient user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// GaugeRecorder reports point-in-time values.
type GaugeRecorder interface {
	RecordGauge(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}
