package amtokenmiddleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"

	"github.com/actionablemessages/go-amtoken-middleware/core"
	"github.com/actionablemessages/go-amtoken-middleware/jwks"
	"github.com/actionablemessages/go-amtoken-middleware/policy"
	"github.com/actionablemessages/go-amtoken-middleware/validator"
)

// PipelineConfig configures NewPipeline. The zero value validates tokens
// from the default actionable message issuer with an in-memory key cache.
type PipelineConfig struct {
	// DiscoveryURL is the trusted discovery document. Default: policy.DefaultDiscoveryURL.
	DiscoveryURL string
	// JWKSURI skips discovery and fetches keys from this URL.
	JWKSURI string
	// Issuer is the expected iss claim. Default: policy.DefaultIssuer.
	Issuer string
	// AppID is the expected appid claim. Default: policy.DefaultAppID.
	AppID string
	// AudienceMatch compares aud with the target. Default: policy.AudienceMatchCaseInsensitive.
	AudienceMatch policy.AudienceMatch

	// HTTPClient fetches metadata and keys. Default: a client with connect,
	// read and overall timeouts.
	HTTPClient *http.Client
	// Retry bounds retries of transient fetch failures. Default: one attempt.
	Retry jwks.RetryPolicy
	// Cache stores discovery results and key sets, e.g. jwks.NewRedisCache
	// to share them between replicas. Default: jwks.NewMemoryCache().
	Cache jwks.Cache
	// CacheTTL is the cache lifetime. Default: jwks.DefaultCacheTTL.
	CacheTTL time.Duration

	// AllowedAlgorithms overrides validator.DefaultAllowedAlgorithms.
	AllowedAlgorithms []jwa.SignatureAlgorithm
	// ClockSkew is the tolerance of exp, nbf and iat. Nil means
	// validator.DefaultAllowedClockSkew; a pointer to zero means no tolerance.
	ClockSkew *time.Duration
	// Clock replaces time.Now for the temporal checks.
	Clock func() time.Time

	Logger  Logger
	Metrics core.Metrics
	Tracer  core.Tracer
}

// Pipeline is the assembled validation pipeline: a caching key provider, a
// signature verifier and the claim policy behind a core.Core.
type Pipeline struct {
	*core.Core
	keys *jwks.CachingProvider
}

// Invalidate drops the cached discovery result and key set so the next
// validation fetches them again.
func (p *Pipeline) Invalidate(ctx context.Context) error {
	return p.keys.Invalidate(ctx)
}

// NewPipeline wires a jwks.CachingProvider, a validator.Validator and a
// policy.Policy into a core.Core.
//
// Example:
//
//	pipeline, err := amtokenmiddleware.NewPipeline(amtokenmiddleware.PipelineConfig{
//	    Logger: slog.Default(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := pipeline.Validate(ctx, token, "https://api.example.com")
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	keys, err := jwks.NewCachingProvider(cfg.keyProviderOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create key provider: %w", err)
	}

	validatorOpts := []validator.Option{validator.WithKeyProvider(keys)}
	if len(cfg.AllowedAlgorithms) > 0 {
		validatorOpts = append(validatorOpts, validator.WithAllowedAlgorithms(cfg.AllowedAlgorithms...))
	}
	if cfg.ClockSkew != nil {
		validatorOpts = append(validatorOpts, validator.WithAllowedClockSkew(*cfg.ClockSkew))
	}
	if cfg.Clock != nil {
		validatorOpts = append(validatorOpts, validator.WithClock(cfg.Clock))
	}
	verifier, err := validator.New(validatorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	policyOpts := []policy.Option{policy.WithAudienceMatch(cfg.AudienceMatch)}
	if cfg.Issuer != "" {
		policyOpts = append(policyOpts, policy.WithIssuer(cfg.Issuer))
	}
	if cfg.AppID != "" {
		policyOpts = append(policyOpts, policy.WithAppID(cfg.AppID))
	}
	claimPolicy, err := policy.New(policyOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim policy: %w", err)
	}

	coreOpts := []core.Option{
		core.WithVerifier(verifier),
		core.WithClaimPolicy(claimPolicy),
	}
	if cfg.Logger != nil {
		coreOpts = append(coreOpts, core.WithLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		coreOpts = append(coreOpts, core.WithMetrics(cfg.Metrics))
	}
	if cfg.Tracer != nil {
		coreOpts = append(coreOpts, core.WithTracer(cfg.Tracer))
	}
	c, err := core.New(coreOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	return &Pipeline{Core: c, keys: keys}, nil
}

func (cfg PipelineConfig) keyProviderOptions() []any {
	var opts []any

	switch {
	case cfg.JWKSURI != "":
		opts = append(opts, jwks.WithCustomJWKSURI(cfg.JWKSURI))
	case cfg.DiscoveryURL != "":
		opts = append(opts, jwks.WithDiscoveryURL(cfg.DiscoveryURL))
	default:
		opts = append(opts, jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL))
	}

	if cfg.HTTPClient != nil {
		opts = append(opts, jwks.WithCustomClient(cfg.HTTPClient))
	}
	if cfg.Retry != (jwks.RetryPolicy{}) {
		opts = append(opts, jwks.WithRetry(cfg.Retry))
	}
	if cfg.Cache != nil {
		opts = append(opts, jwks.WithCache(cfg.Cache))
	}
	if cfg.CacheTTL != 0 {
		opts = append(opts, jwks.WithCacheTTL(cfg.CacheTTL))
	}
	if cfg.Logger != nil {
		opts = append(opts, jwks.WithLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		opts = append(opts, jwks.WithMetrics(cfg.Metrics))
	}

	return opts
}
