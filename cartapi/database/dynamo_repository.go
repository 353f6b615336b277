package database

import (
	"context"
	"fmt"
	"time"

	"scarlet-storefront/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoCartRepository stores one item per cart in a table keyed by
// cart_key (string). expires_at is an epoch-seconds TTL attribute.
type DynamoCartRepository struct {
	client *dynamodb.Client
	table  string
	ttl    time.Duration
}

func NewDynamoCartRepository(client *dynamodb.Client, table string, ttl time.Duration) *DynamoCartRepository {
	return &DynamoCartRepository{client: client, table: table, ttl: ttl}
}

type ddbCart struct {
	CartKey   string            `dynamodbav:"cart_key"`
	ID        string            `dynamodbav:"id"`
	UserID    string            `dynamodbav:"user_id"`
	SessionID string            `dynamodbav:"session_id,omitempty"`
	Items     []models.CartItem `dynamodbav:"items"`
	CreatedAt string            `dynamodbav:"created_at"`
	UpdatedAt string            `dynamodbav:"updated_at"`
	ExpiresAt int64             `dynamodbav:"expires_at,omitempty"`
}

func (r *DynamoCartRepository) GetCart(ctx context.Context, key string) (*models.Cart, error) {
	k, err := attributevalue.MarshalMap(map[string]string{"cart_key": key})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var dc ddbCart
	if err := attributevalue.UnmarshalMap(out.Item, &dc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	// TTL deletion is lazy on the DynamoDB side
	if dc.ExpiresAt > 0 && time.Now().Unix() >= dc.ExpiresAt {
		return nil, nil
	}

	cart := &models.Cart{
		ID:        dc.ID,
		UserID:    dc.UserID,
		SessionID: dc.SessionID,
		Items:     dc.Items,
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	if t, err := time.Parse(time.RFC3339, dc.CreatedAt); err == nil {
		cart.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, dc.UpdatedAt); err == nil {
		cart.UpdatedAt = t
	}
	return cart, nil
}

func (r *DynamoCartRepository) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	now := time.Now().UTC()
	cart.UpdatedAt = now

	dc := ddbCart{
		CartKey:   key,
		ID:        cart.ID,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Items:     cart.Items,
		CreatedAt: cart.CreatedAt.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}
	if r.ttl > 0 {
		dc.ExpiresAt = now.Add(r.ttl).Unix()
	}

	item, err := attributevalue.MarshalMap(dc)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r *DynamoCartRepository) DeleteCart(ctx context.Context, key string) error {
	k, err := attributevalue.MarshalMap(map[string]string{"cart_key": key})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.table,
		Key:       k,
	}); err != nil {
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	return nil
}
