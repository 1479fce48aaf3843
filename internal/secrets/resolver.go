package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/cache"
	pkgsecrets "github.com/Checker-Finance/experiences/pkg/secrets"
)

const (
	cacheScope   = "secrets"
	cacheOp      = "provider_config"
	providersDir = "providers"
)

// Resolver resolves per-provider configuration from a secrets Provider,
// caching results locally to reduce API calls. It is generic over the
// resolved config type T.
//
// Secret naming convention: {env}/providers/{name}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    cache.Cache[T]
	ttl      time.Duration
}

// NewResolver constructs a resolver. A nil cache disables caching.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	c cache.Cache[T],
	ttl time.Duration,
) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    c,
		ttl:      ttl,
	}
}

// SecretName builds the secret key for a provider.
func (r *Resolver[T]) SecretName(name string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, providersDir, name))
}

// Resolve fetches or returns the cached config T for a provider. secretName
// overrides the conventional name when non-empty. parse extracts T from the
// raw secret map and should validate required fields.
func (r *Resolver[T]) Resolve(ctx context.Context, name, secretName string, parse func(map[string]string) (T, error)) (T, error) {
	var zero T
	key := cache.IDKey(cacheScope, cacheOp, strings.ToLower(name))

	if r.cache != nil {
		if cfg, ok := r.cache.Get(ctx, key); ok {
			return cfg, nil
		}
	}

	if secretName == "" {
		secretName = r.SecretName(name)
	}
	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("provider", name),
			zap.String("key", secretName),
			zap.Error(err))
		return zero, fmt.Errorf("resolve provider config for %q: %w", name, err)
	}

	cfg, err := parse(secretMap)
	if err != nil {
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	if r.cache != nil {
		r.cache.Put(ctx, key, cfg, r.ttl)
	}

	r.logger.Info("secrets.provider_config_resolved",
		zap.String("provider", name),
		zap.String("key", secretName))
	return cfg, nil
}

// Bust drops the cached config for a provider, e.g. after key rotation.
func (r *Resolver[T]) Bust(ctx context.Context, name string) {
	if r.cache != nil {
		r.cache.Delete(ctx, cache.IDKey(cacheScope, cacheOp, strings.ToLower(name)))
	}
}

// DiscoverProviders lists provider names that have secrets under
// "{env}/providers/".
func (r *Resolver[T]) DiscoverProviders(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(fmt.Sprintf("%s/%s/", r.env, providersDir))

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover providers: %w", err)
	}

	var out []string
	for _, n := range names {
		lower := strings.ToLower(n)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := strings.TrimPrefix(lower, prefix)
		if rest != "" && !strings.Contains(rest, "/") {
			out = append(out, rest)
		}
	}

	r.logger.Info("secrets.providers_discovered",
		zap.Int("count", len(out)),
		zap.Strings("providers", out))
	return out, nil
}

// ProviderCredentials is the secret payload for an upstream provider.
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
}

// ErrMissingAPIKey is returned when a provider secret carries no api_key.
var ErrMissingAPIKey = errors.New("secret has no api_key")

// ParseProviderCredentials reads {"api_key", "base_url"} from a secret map.
// base_url is optional and overrides the configured value when present.
func ParseProviderCredentials(m map[string]string) (ProviderCredentials, error) {
	key := strings.TrimSpace(m["api_key"])
	if key == "" {
		return ProviderCredentials{}, ErrMissingAPIKey
	}
	return ProviderCredentials{
		APIKey:  key,
		BaseURL: strings.TrimRight(strings.TrimSpace(m["base_url"]), "/"),
	}, nil
}
