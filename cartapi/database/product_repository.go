package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scarlet-storefront/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// ProductRepository is the read side of the catalog used to price carts.
// Unknown ids are skipped.
type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// MemoryProductRepository serves a fixed product list.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryProductRepository(products ...models.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[string]models.Product, len(products))}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *MemoryProductRepository) FindByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// All lists every product ordered by id.
func (r *MemoryProductRepository) All() []models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DemoProducts is the catalog served when no product table is configured.
func DemoProducts() []models.Product {
	return []models.Product{
		{ID: "lipstick-ruby", Title: "Velvet Matte Lipstick - Ruby", Price: decimal.RequireFromString("850"), Stock: 40},
		{ID: "serum-vitc", Title: "Vitamin C Brightening Serum 30ml", Price: decimal.RequireFromString("1250.50"), Stock: 25},
		{ID: "kajal-black", Title: "Smudge-proof Kajal", Price: decimal.RequireFromString("320"), Stock: 120},
		{ID: "sunscreen-50", Title: "Sunscreen SPF 50 PA++++", Price: decimal.RequireFromString("1490"), Stock: 12},
		{ID: "toner-rose", Title: "Rose Water Toner 200ml", Price: decimal.RequireFromString("560"), Stock: 1},
	}
}

// DynamoProductRepository reads products from a table keyed by product_id.
type DynamoProductRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoProductRepository(client *dynamodb.Client, table string) *DynamoProductRepository {
	return &DynamoProductRepository{client: client, table: table}
}

type ddbProduct struct {
	ProductID string   `dynamodbav:"product_id"`
	Name      string   `dynamodbav:"name"`
	Price     string   `dynamodbav:"price"`
	Quantity  int      `dynamodbav:"quantity"`
	Images    []string `dynamodbav:"images,omitempty"`
}

// batchGetLimit is the DynamoDB BatchGetItem key limit.
const batchGetLimit = 100

func (d *DynamoProductRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	out := make([]models.Product, 0, len(ids))
	for start := 0; start < len(ids); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(ids) {
			end = len(ids)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			k, err := attributevalue.MarshalMap(map[string]string{"product_id": id})
			if err != nil {
				return nil, fmt.Errorf("marshal key: %w", err)
			}
			keys = append(keys, k)
		}

		request := map[string]types.KeysAndAttributes{d.table: {Keys: keys}}
		for len(request) > 0 {
			resp, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("dynamodb BatchGetItem failed: %w", err)
			}
			for _, item := range resp.Responses[d.table] {
				var dp ddbProduct
				if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
					return nil, fmt.Errorf("unmarshal item: %w", err)
				}
				out = append(out, toProduct(dp))
			}
			request = resp.UnprocessedKeys
		}
	}
	return out, nil
}

func toProduct(dp ddbProduct) models.Product {
	price, err := decimal.NewFromString(dp.Price)
	if err != nil {
		price = decimal.Zero
	}
	return models.Product{
		ID:     dp.ProductID,
		Title:  dp.Name,
		Price:  price,
		Images: dp.Images,
		Stock:  dp.Quantity,
	}
}
