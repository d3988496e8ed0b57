package jwks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/actionablemessages/go-amtoken-middleware/core"
	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
	"github.com/actionablemessages/go-amtoken-middleware/internal/oidc"
)

// Defaults for the CachingProvider.
const (
	DefaultCacheTTL           = 15 * time.Minute
	DefaultMinRefreshInterval = 1 * time.Minute
)

// Metric names recorded by the CachingProvider. The counters carry a
// "document" tag ("discovery" or "jwks") and a "result" tag.
// MetricKeySetSize is a gauge of the keys in the last fetched key set,
// tagged with its "jwks_uri".
const (
	MetricCacheLookups = "amtoken_jwks_cache_lookups_total"
	MetricFetches      = "amtoken_jwks_fetches_total"
	MetricKeySetSize   = "amtoken_jwks_keys"
)

// sharedFetchTimeout bounds a fetch that no longer follows the context of
// the caller that started it.
const sharedFetchTimeout = time.Minute

const (
	documentDiscovery = "discovery"
	documentJWKS      = "jwks"
)

// CachingProvider resolves signing keys like Provider but keeps the
// discovery result and the key set document in a Cache.
//
// A token whose kid is not in the cached key set causes one refetch, so keys
// rotated by the identity provider are picked up without waiting for the TTL.
// Refetches of a given key set are limited to one per MinRefreshInterval and
// concurrent fetches of the same document are collapsed into one request.
//
// This type is safe for concurrent use.
type CachingProvider struct {
	discoveryURL       string
	customJWKSURI      string
	httpClient         *http.Client
	retry              RetryPolicy
	cache              Cache
	cacheTTL           time.Duration
	minRefreshInterval time.Duration
	logger             core.Logger
	metrics            core.Metrics
	now                func() time.Time

	group     singleflight.Group
	fetchMu   sync.Mutex
	lastFetch map[string]time.Time
}

// NewCachingProvider builds and returns a new CachingProvider.
//
// Accepts both ProviderOption and CachingProviderOption types, so the common
// options WithDiscoveryURL, WithCustomJWKSURI, WithCustomClient and WithRetry
// can be used without any wrapper.
//
// Required options:
//   - WithDiscoveryURL: trusted discovery document URL
//
// Optional options:
//   - WithCacheTTL: cache lifetime (default: 15 minutes)
//   - WithCache: custom cache implementation (default: MemoryCache)
//   - WithMinRefreshInterval: refetch rate limit (default: 1 minute)
//   - WithLogger, WithMetrics
//
// Example:
//
//	provider, err := jwks.NewCachingProvider(
//	    jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL),
//	    jwks.WithCacheTTL(5*time.Minute),
//	    jwks.WithCache(jwks.NewRedisCache(rdb, "amtoken:")),
//	)
func NewCachingProvider(opts ...any) (*CachingProvider, error) {
	config := &cachingProviderConfig{
		httpClient:         fetch.NewDefaultClient(),
		retry:              fetch.NoRetry,
		cacheTTL:           DefaultCacheTTL,
		minRefreshInterval: DefaultMinRefreshInterval,
	}

	for _, opt := range opts {
		switch v := opt.(type) {
		case CachingProviderOption:
			if err := v(config); err != nil {
				return nil, fmt.Errorf("invalid option: %w", err)
			}
		case ProviderOption:
			tempProvider := &Provider{}
			if err := v(tempProvider); err != nil {
				return nil, fmt.Errorf("invalid option: %w", err)
			}

			if tempProvider.DiscoveryURL != "" {
				config.discoveryURL = tempProvider.DiscoveryURL
			}
			if tempProvider.CustomJWKSURI != "" {
				config.customJWKSURI = tempProvider.CustomJWKSURI
			}
			if tempProvider.Client != nil {
				config.httpClient = tempProvider.Client
			}
			if tempProvider.Retry != (RetryPolicy{}) {
				config.retry = tempProvider.Retry
			}
		default:
			return nil, fmt.Errorf("invalid option type: %T (must be ProviderOption or CachingProviderOption)", opt)
		}
	}

	if config.discoveryURL == "" && config.customJWKSURI == "" {
		return nil, errors.New("discovery URL is required (use WithDiscoveryURL)")
	}

	cp := &CachingProvider{
		discoveryURL:       config.discoveryURL,
		customJWKSURI:      config.customJWKSURI,
		httpClient:         config.httpClient,
		retry:              config.retry,
		cache:              config.cache,
		cacheTTL:           config.cacheTTL,
		minRefreshInterval: config.minRefreshInterval,
		logger:             config.logger,
		metrics:            config.metrics,
		now:                time.Now,
		lastFetch:          make(map[string]time.Time),
	}
	if cp.cache == nil {
		cp.cache = NewMemoryCache()
	}
	if cp.metrics == nil {
		cp.metrics = core.NoopMetrics{}
	}

	return cp, nil
}

// SigningKey returns the public key identified by kid, checked against the
// token's algorithm. See Provider.SigningKey for the error kinds.
func (c *CachingProvider) SigningKey(ctx context.Context, kid string, alg jwa.SignatureAlgorithm) (jwk.Key, error) {
	if kid == "" {
		return nil, keyNotFound(errors.New("token header has no key id"))
	}

	jwksURI, err := c.resolveJWKSURI(ctx)
	if err != nil {
		return nil, metadataFetch(err)
	}

	set, fresh, err := c.keySet(ctx, jwksURI)
	if err != nil {
		return nil, keyNotFound(err)
	}

	key, err := selectKey(set, kid, alg)
	if err == nil || fresh || !errors.Is(err, errKeyIDNotFound) {
		return key, err
	}

	if !c.mayRefresh(jwksURI) {
		c.debug("Key id not in cached JWKS, refresh rate limited", "kid", kid, "jwks_uri", jwksURI)
		return nil, err
	}

	c.debug("Key id not in cached JWKS, refreshing", "kid", kid, "jwks_uri", jwksURI)
	set, _, err = c.load(ctx, jwksURI, true)
	if err != nil {
		return nil, keyNotFound(err)
	}
	return selectKey(set, kid, alg)
}

// Invalidate drops the cached discovery result and key set.
func (c *CachingProvider) Invalidate(ctx context.Context) error {
	var errs []error
	if jwksURI, ok := c.cachedJWKSURI(ctx); ok {
		errs = append(errs, c.cache.Delete(ctx, keySetCacheKey(jwksURI)))
	}
	if c.customJWKSURI == "" {
		errs = append(errs, c.cache.Delete(ctx, discoveryCacheKey(c.discoveryURL)))
	}
	return errors.Join(errs...)
}

func (c *CachingProvider) resolveJWKSURI(ctx context.Context) (string, error) {
	if jwksURI, ok := c.cachedJWKSURI(ctx); ok {
		return jwksURI, nil
	}
	c.metrics.IncCounter(MetricCacheLookups, map[string]string{"document": documentDiscovery, "result": "miss"})

	key := discoveryCacheKey(c.discoveryURL)
	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		if jwksURI, ok := c.cachedJWKSURI(ctx); ok {
			return jwksURI, nil
		}

		wkEndpoints, err := oidc.GetWellKnownEndpoints(ctx, c.httpClient, c.discoveryURL, c.retry)
		c.recordFetch(documentDiscovery, c.discoveryURL, err)
		if err != nil {
			return "", err
		}

		c.cacheSet(ctx, key, []byte(wkEndpoints.JWKSURI), c.cacheTTL)
		return wkEndpoints.JWKSURI, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// cachedJWKSURI returns the key set URL without touching the network.
func (c *CachingProvider) cachedJWKSURI(ctx context.Context) (string, bool) {
	if c.customJWKSURI != "" {
		return c.customJWKSURI, true
	}

	value, ok := c.cacheGet(ctx, discoveryCacheKey(c.discoveryURL))
	if !ok {
		return "", false
	}
	if _, err := fetch.RequireHTTPS(string(value)); err != nil {
		c.warn("Ignoring cached jwks_uri", "error", err)
		return "", false
	}

	c.metrics.IncCounter(MetricCacheLookups, map[string]string{"document": documentDiscovery, "result": "hit"})
	return string(value), true
}

// keySet returns the key set for jwksURI and whether it was fetched by this call.
func (c *CachingProvider) keySet(ctx context.Context, jwksURI string) (jwk.Set, bool, error) {
	if set, ok := c.cachedKeySet(ctx, jwksURI); ok {
		c.metrics.IncCounter(MetricCacheLookups, map[string]string{"document": documentJWKS, "result": "hit"})
		return set, false, nil
	}
	c.metrics.IncCounter(MetricCacheLookups, map[string]string{"document": documentJWKS, "result": "miss"})

	return c.load(ctx, jwksURI, false)
}

func (c *CachingProvider) cachedKeySet(ctx context.Context, jwksURI string) (jwk.Set, bool) {
	key := keySetCacheKey(jwksURI)
	body, ok := c.cacheGet(ctx, key)
	if !ok {
		return nil, false
	}
	set, err := parseKeySet(body)
	if err != nil {
		c.warn("Discarding unparsable cached JWKS", "jwks_uri", jwksURI, "error", err)
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	return set, true
}

type loadResult struct {
	set     jwk.Set
	fetched bool
}

// load fetches the key set, collapsing concurrent callers into one request.
// Unless force is set, a key set cached by a caller that finished just
// before is reused.
func (c *CachingProvider) load(ctx context.Context, jwksURI string, force bool) (jwk.Set, bool, error) {
	v, err := c.shared(ctx, keySetCacheKey(jwksURI), func(ctx context.Context) (any, error) {
		if !force {
			if set, ok := c.cachedKeySet(ctx, jwksURI); ok {
				return loadResult{set: set}, nil
			}
		}

		c.markFetch(jwksURI)
		set, raw, err := fetchKeySet(ctx, c.httpClient, jwksURI, c.retry)
		c.recordFetch(documentJWKS, jwksURI, err)
		if err != nil {
			return nil, err
		}

		c.metrics.SetGauge(MetricKeySetSize, float64(set.Len()), map[string]string{"jwks_uri": jwksURI})
		c.cacheSet(ctx, keySetCacheKey(jwksURI), raw.body, c.effectiveTTL(raw.maxAge))
		return loadResult{set: set, fetched: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(loadResult)
	return res.set, res.fetched, nil
}

// shared runs fn once for all concurrent callers of key. fn is detached from
// the cancellation of the caller that started it, so a caller giving up does
// not fail the others; each caller still stops waiting when its own ctx ends.
func (c *CachingProvider) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// effectiveTTL uses Cache-Control max-age only when it is longer than the
// configured TTL.
func (c *CachingProvider) effectiveTTL(maxAge time.Duration) time.Duration {
	if maxAge > c.cacheTTL {
		return maxAge
	}
	return c.cacheTTL
}

func (c *CachingProvider) mayRefresh(jwksURI string) bool {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	last, ok := c.lastFetch[jwksURI]
	return !ok || c.now().Sub(last) >= c.minRefreshInterval
}

func (c *CachingProvider) markFetch(jwksURI string) {
	c.fetchMu.Lock()
	c.lastFetch[jwksURI] = c.now()
	c.fetchMu.Unlock()
}

func (c *CachingProvider) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.warn("JWKS cache read failed", "key", key, "error", err)
		return nil, false
	}
	return value, ok
}

func (c *CachingProvider) cacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		c.warn("JWKS cache write failed", "key", key, "error", err)
	}
}

func (c *CachingProvider) recordFetch(document, url string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		c.warn("Identity provider fetch failed", "document", document, "url", url, "error", err)
	} else {
		c.debug("Fetched identity provider document", "document", document, "url", url)
	}
	c.metrics.IncCounter(MetricFetches, map[string]string{"document": document, "result": result})
}

func (c *CachingProvider) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *CachingProvider) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func discoveryCacheKey(discoveryURL string) string {
	return "discovery:" + discoveryURL
}

func keySetCacheKey(jwksURI string) string {
	return "jwks:" + jwksURI
}
