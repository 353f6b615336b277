package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"scarlet-storefront/models"

	"github.com/redis/go-redis/v9"
)

// CartRepository persists carts by cart key (see UserKey and GuestKey).
// GetCart returns nil, nil when no cart is stored under the key.
type CartRepository interface {
	GetCart(ctx context.Context, key string) (*models.Cart, error)
	SaveCart(ctx context.Context, key string, cart *models.Cart) error
	DeleteCart(ctx context.Context, key string) error
}

func UserKey(userID string) string {
	return "user:" + userID
}

func GuestKey(sessionID string) string {
	return "guest:" + sessionID
}

// RedisCartRepository stores carts as JSON blobs that expire after ttl.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCartRepository) getKey(key string) string {
	return "cart:" + key
}

func (r *RedisCartRepository) GetCart(ctx context.Context, key string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.getKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *RedisCartRepository) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(key), data, r.ttl).Err()
}

func (r *RedisCartRepository) DeleteCart(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.getKey(key)).Err()
}
