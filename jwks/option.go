package jwks

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/actionablemessages/go-amtoken-middleware/core"
	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
)

// ============================================================================
// Provider Options
// ============================================================================

// ProviderOption is how options for the Provider are set up.
type ProviderOption func(*Provider) error

// WithDiscoveryURL sets the trusted discovery document URL.
// This is a required option unless WithCustomJWKSURI is used.
// The URL must be an absolute https URL.
func WithDiscoveryURL(discoveryURL string) ProviderOption {
	return func(p *Provider) error {
		if _, err := fetch.RequireHTTPS(discoveryURL); err != nil {
			return fmt.Errorf("discovery URL: %w", err)
		}
		p.DiscoveryURL = discoveryURL
		return nil
	}
}

// WithCustomJWKSURI sets the key set URL directly, skipping discovery.
func WithCustomJWKSURI(jwksURI string) ProviderOption {
	return func(p *Provider) error {
		if _, err := fetch.RequireHTTPS(jwksURI); err != nil {
			return fmt.Errorf("custom JWKS URI: %w", err)
		}
		p.CustomJWKSURI = jwksURI
		return nil
	}
}

// WithCustomClient sets a custom HTTP client.
// If not specified, a client with connect, read and overall timeouts is used.
// Redirects are never followed, whatever the client's CheckRedirect says.
func WithCustomClient(c *http.Client) ProviderOption {
	return func(p *Provider) error {
		if c == nil {
			return errors.New("HTTP client cannot be nil")
		}
		p.Client = c
		return nil
	}
}

// WithRetry enables bounded retries of transient network failures.
// The default is a single attempt.
func WithRetry(policy RetryPolicy) ProviderOption {
	return func(p *Provider) error {
		if policy.Attempts < 1 {
			return errors.New("retry attempts must be at least 1")
		}
		if policy.Attempts > 10 {
			return errors.New("retry attempts cannot exceed 10")
		}
		if policy.BaseDelay < 0 || policy.MaxDelay < 0 {
			return errors.New("retry delays cannot be negative")
		}
		p.Retry = policy
		return nil
	}
}

// ============================================================================
// CachingProvider Options
// ============================================================================

// CachingProviderOption is how options specific to the CachingProvider are set up.
type CachingProviderOption func(*cachingProviderConfig) error

type cachingProviderConfig struct {
	discoveryURL       string
	customJWKSURI      string
	httpClient         *http.Client
	retry              RetryPolicy
	cacheTTL           time.Duration
	cache              Cache
	minRefreshInterval time.Duration
	logger             core.Logger
	metrics            core.Metrics
}

// WithCacheTTL sets how long discovery results and key sets are cached.
// If not specified, or zero, defaults to 15 minutes. A longer
// Cache-Control max-age on the key set response takes precedence.
func WithCacheTTL(ttl time.Duration) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if ttl < 0 {
			return errors.New("cache TTL cannot be negative")
		}
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		c.cacheTTL = ttl
		return nil
	}
}

// WithCache sets a custom Cache implementation, e.g. NewRedisCache.
func WithCache(cache Cache) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if cache == nil {
			return errors.New("cache cannot be nil")
		}
		c.cache = cache
		return nil
	}
}

// WithMinRefreshInterval limits how often a key set is refetched after a key
// id miss. Zero disables the limit.
func WithMinRefreshInterval(d time.Duration) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if d < 0 {
			return errors.New("minimum refresh interval cannot be negative")
		}
		c.minRefreshInterval = d
		return nil
	}
}

// WithLogger sets a logger for cache and fetch events.
func WithLogger(logger core.Logger) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a metrics sink for cache lookups and fetches.
func WithMetrics(metrics core.Metrics) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if metrics == nil {
			return errors.New("metrics cannot be nil")
		}
		c.metrics = metrics
		return nil
	}
}
