package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// DefaultSecretTTL bounds how long a fetched secret is served from memory, so
// a rotated value is picked up without a restart.
const DefaultSecretTTL = 15 * time.Minute

// SecretValueAPI is the part of the Secrets Manager client used here.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretReader returns the string value of a named secret.
type SecretReader interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type cachedSecret struct {
	value   string
	fetched time.Time
}

// SecretsClient reads Secrets Manager values and caches each for ttl.
type SecretsClient struct {
	api   SecretValueAPI
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]cachedSecret
}

func NewSecretsClient(cfg sdkaws.Config, ttl time.Duration) *SecretsClient {
	return NewSecretsClientFromAPI(secretsmanager.NewFromConfig(cfg), ttl)
}

// NewSecretsClientFromAPI wraps an existing client; ttl <= 0 uses DefaultSecretTTL.
func NewSecretsClientFromAPI(api SecretValueAPI, ttl time.Duration) *SecretsClient {
	if ttl <= 0 {
		ttl = DefaultSecretTTL
	}
	return &SecretsClient{
		api:   api,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedSecret),
	}
}

// WithClock replaces the clock used for cache expiry.
func (s *SecretsClient) WithClock(now func() time.Time) *SecretsClient {
	s.now = now
	return s
}

func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	if c, ok := s.cache[name]; ok && s.now().Sub(c.fetched) < s.ttl {
		s.mu.Unlock()
		return c.value, nil
	}
	s.mu.Unlock()

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	s.mu.Lock()
	s.cache[name] = cachedSecret{value: *out.SecretString, fetched: s.now()}
	s.mu.Unlock()
	return *out.SecretString, nil
}

// StorefrontSecrets are the signing keys shared by the storefront binaries.
// Stored as JSON in one secret; a plain string secret is taken as the JWT key.
type StorefrontSecrets struct {
	JWTSecret      string `json:"jwt_secret"`
	SessionAuthKey string `json:"session_auth_key"`
	SessionEncKey  string `json:"session_enc_key"`
}

// ResolveSecrets fills the blank fields of local from the secret called name.
// Nothing is fetched when name is empty or local is complete.
func ResolveSecrets(ctx context.Context, reader SecretReader, local StorefrontSecrets, name string) (StorefrontSecrets, error) {
	if name == "" || (local.JWTSecret != "" && local.SessionAuthKey != "" && local.SessionEncKey != "") {
		return local, nil
	}
	if reader == nil {
		return local, errors.New("secret " + name + " configured but AWS is unavailable")
	}

	raw, err := reader.GetSecret(ctx, name)
	if err != nil {
		return local, err
	}

	var stored StorefrontSecrets
	if trimmed := strings.TrimSpace(raw); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &stored); err != nil {
			return local, fmt.Errorf("secret %s is not valid JSON: %w", name, err)
		}
	} else {
		stored.JWTSecret = trimmed
	}

	if local.JWTSecret == "" {
		local.JWTSecret = stored.JWTSecret
	}
	if local.SessionAuthKey == "" {
		local.SessionAuthKey = stored.SessionAuthKey
	}
	if local.SessionEncKey == "" {
		local.SessionEncKey = stored.SessionEncKey
	}
	return local, nil
}
