package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/models"
)

// CatalogClient reads product data used to price cart items.
type CatalogClient struct {
	gateway *GatewayClient
}

func NewCatalogClient(gateway *GatewayClient) *CatalogClient {
	return &CatalogClient{gateway: gateway}
}

// ProductsByIDs fetches the given products keyed by id. Unknown ids are absent
// from the result.
func (c *CatalogClient) ProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("limit", strconv.Itoa(len(ids)))

	resp, err := c.gateway.Do(ctx, http.MethodGet, "/products", query, nil, nil)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := DecodeEnvelope(resp, &raw); err != nil {
		return nil, err
	}

	products, err := decodeProducts(raw)
	if err != nil {
		return nil, apperrors.New(http.StatusBadGateway, apperrors.KindAPI, "Unexpected catalog response", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// decodeProducts accepts either a bare list or a {products: [...]} page.
func decodeProducts(raw json.RawMessage) ([]models.Product, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []models.Product
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Products []models.Product `json:"products"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}
