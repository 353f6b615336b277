package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"scarlet-storefront/models"
	awspkg "scarlet-storefront/pkg/aws"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, note models.Notification) {
	if n.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("level", string(note.Level)), zap.String("message", note.Message)}
	switch note.Level {
	case models.LevelError:
		n.Logger.Error("cart_notification", fields...)
	case models.LevelWarning:
		n.Logger.Warn("cart_notification", fields...)
	default:
		n.Logger.Info("cart_notification", fields...)
	}
}

const DefaultInboxSize = 20

// Inbox buffers the latest notifications of one visitor until they are read.
// When full, the oldest entry is dropped.
type Inbox struct {
	mu    sync.Mutex
	size  int
	items []models.Notification
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{size: size}
}

func (in *Inbox) Notify(_ context.Context, note models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if note.At.IsZero() {
		note.At = time.Now()
	}
	in.items = append(in.items, note)
	if len(in.items) > in.size {
		in.items = in.items[len(in.items)-in.size:]
	}
}

// Drain returns the buffered notifications, oldest first, and empties the inbox.
func (in *Inbox) Drain() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.items
	in.items = nil
	if out == nil {
		out = []models.Notification{}
	}
	return out
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}

// NotificationEvent is the SNS payload for a cart notification.
type NotificationEvent struct {
	Event     string    `json:"event"`
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventNotifier publishes notifications to an SNS topic so other channels
// (push, email) can relay them.
type EventNotifier struct {
	Publisher awspkg.SNSPublisher
	TopicARN  string
	SessionID string
	Logger    *zap.Logger
}

func (n EventNotifier) Notify(ctx context.Context, note models.Notification) {
	if n.Publisher == nil || n.TopicARN == "" {
		return
	}
	payload, err := json.Marshal(NotificationEvent{
		Event:     "cart.notification",
		SessionID: n.SessionID,
		Level:     string(note.Level),
		Message:   note.Message,
		Timestamp: note.At,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.Publisher.Publish(ctx, n.TopicARN, payload, map[string]string{"event": "cart.notification"}); err != nil && n.Logger != nil {
		n.Logger.Warn("Failed to publish cart notification", zap.Error(err))
	}
}

// MultiNotifier fans a notification out to every sink.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, note models.Notification) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, note)
		}
	}
}
