package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/logger"
	"scarlet-storefront/models"
)

type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Do sends one request. Transport failures come back as network errors.
func (g *GatewayClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, apperrors.Internal("Failed to build request", err)
	}

	for k, v := range headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if rid := logger.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	return resp, nil
}

// DecodeEnvelope reads a {success, data} response into out. A status of 400
// or above, or success:false, becomes an API error carrying the server message.
func DecodeEnvelope(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(err)
	}

	var env models.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		msg := ""
		if decodeErr == nil {
			msg = env.ErrorMessage()
		}
		return apperrors.API(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return apperrors.New(resp.StatusCode, apperrors.KindAPI, "Unexpected response from server", decodeErr)
	}
	if !env.Success {
		return apperrors.API(http.StatusUnprocessableEntity, env.ErrorMessage())
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.New(resp.StatusCode, apperrors.KindAPI, "Unexpected response from server", fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// BodyFromJSON encodes v as a request body.
func BodyFromJSON(v interface{}) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Internal("Failed to encode request", err)
	}
	return BodyFromBytes(b), nil
}

func BodyFromBytes(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}
