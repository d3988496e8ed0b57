package jwks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/actionablemessages/go-amtoken-middleware/core"
	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
	"github.com/actionablemessages/go-amtoken-middleware/internal/oidc"
)

// RetryPolicy bounds retries of transient network failures (transport
// errors, 5xx and 429). Attempts counts the first try.
type RetryPolicy = fetch.RetryPolicy

// errKeyIDNotFound marks a lookup that found no key with the token's kid.
// It is the only key failure that justifies refreshing a cached key set.
var errKeyIDNotFound = errors.New("no key matches the key id")

// Provider resolves signing keys by fetching the discovery document and the
// key set on every call. Most likely you will want to use the
// CachingProvider, which avoids two network round trips per token.
type Provider struct {
	DiscoveryURL  string // Required.
	CustomJWKSURI string // Optional.
	Client        *http.Client
	Retry         RetryPolicy
}

// NewProvider builds and returns a new *Provider.
// Required options:
//   - WithDiscoveryURL: trusted discovery document URL
//
// Optional options:
//   - WithCustomJWKSURI: key set URL (skips discovery)
//   - WithCustomClient: custom HTTP client
//   - WithRetry: bounded retry of transient failures
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		Client: fetch.NewDefaultClient(),
		Retry:  fetch.NoRetry,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if p.DiscoveryURL == "" && p.CustomJWKSURI == "" {
		return nil, errors.New("discovery URL is required (use WithDiscoveryURL)")
	}

	return p, nil
}

// SigningKey returns the public key identified by kid, checked against the
// token's algorithm. Failures are *core.ValidationError values of kind
// KindMetadataFetch, KindKeyNotFound or KindUnsupportedAlgorithm.
func (p *Provider) SigningKey(ctx context.Context, kid string, alg jwa.SignatureAlgorithm) (jwk.Key, error) {
	if kid == "" {
		return nil, keyNotFound(errors.New("token header has no key id"))
	}

	jwksURI := p.CustomJWKSURI
	if jwksURI == "" {
		wkEndpoints, err := oidc.GetWellKnownEndpoints(ctx, p.Client, p.DiscoveryURL, p.Retry)
		if err != nil {
			return nil, metadataFetch(err)
		}
		jwksURI = wkEndpoints.JWKSURI
	}

	set, _, err := fetchKeySet(ctx, p.Client, jwksURI, p.Retry)
	if err != nil {
		return nil, keyNotFound(err)
	}

	return selectKey(set, kid, alg)
}

// fetchKeySet fetches and parses the key set at jwksURI. It also returns the
// raw document and the Cache-Control max-age (0 when absent or out of bounds).
func fetchKeySet(ctx context.Context, client *http.Client, jwksURI string, retry RetryPolicy) (jwk.Set, *rawKeySet, error) {
	resp, err := fetch.Get(ctx, client, jwksURI, retry)
	if err != nil {
		return nil, nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}

	set, err := parseKeySet(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return set, &rawKeySet{
		body:   resp.Body,
		maxAge: parseCacheControl(resp.Header.Get("Cache-Control")),
	}, nil
}

type rawKeySet struct {
	body   []byte
	maxAge time.Duration
}

func parseKeySet(body []byte) (jwk.Set, error) {
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return set, nil
}

// selectKey picks the single key with the given kid and binds it to alg.
func selectKey(set jwk.Set, kid string, alg jwa.SignatureAlgorithm) (jwk.Key, error) {
	var (
		match jwk.Key
		count int
	)
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if ok && key.KeyID() == kid {
			match = key
			count++
		}
	}

	switch {
	case count == 0:
		return nil, keyNotFound(fmt.Errorf("%w %q", errKeyIDNotFound, kid))
	case count > 1:
		return nil, keyNotFound(fmt.Errorf("key set contains %d keys with id %q", count, kid))
	}

	if use := match.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
		return nil, keyNotFound(fmt.Errorf("key %q has use %q, not %q", kid, use, jwk.ForSignature))
	}

	if declared := match.Algorithm().String(); declared != "" {
		if declared != alg.String() {
			return nil, core.NewValidationError(
				core.KindUnsupportedAlgorithm,
				core.ErrUnsupportedAlgorithm.Message,
				fmt.Errorf("token uses %s but key %q is declared for %s", alg, kid, declared),
			)
		}
	} else if !compatibleKeyType(alg, match.KeyType()) {
		return nil, core.NewValidationError(
			core.KindUnsupportedAlgorithm,
			core.ErrUnsupportedAlgorithm.Message,
			fmt.Errorf("token uses %s but key %q has type %s", alg, kid, match.KeyType()),
		)
	}

	pub, err := match.PublicKey()
	if err != nil {
		return nil, keyNotFound(fmt.Errorf("could not derive public key %q: %w", kid, err))
	}
	return pub, nil
}

func compatibleKeyType(alg jwa.SignatureAlgorithm, kty jwa.KeyType) bool {
	switch alg {
	case jwa.RS256, jwa.RS384, jwa.RS512, jwa.PS256, jwa.PS384, jwa.PS512:
		return kty == jwa.RSA
	case jwa.ES256, jwa.ES384, jwa.ES512:
		return kty == jwa.EC
	case jwa.EdDSA:
		return kty == jwa.OKP
	default:
		return false
	}
}

func keyNotFound(err error) error {
	return core.NewValidationError(core.KindKeyNotFound, core.ErrKeyNotFound.Message, err)
}

func metadataFetch(err error) error {
	return core.NewValidationError(core.KindMetadataFetch, core.ErrMetadataFetch.Message, err)
}

// parseCacheControl extracts max-age from a Cache-Control header.
// Returns 0 if max-age is not present, invalid, or outside [1s, 7d].
func parseCacheControl(cacheControl string) time.Duration {
	const (
		maxAgePrefix = "max-age="
		minTTL       = 1 * time.Second
		maxTTL       = 7 * 24 * time.Hour
	)

	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, maxAgePrefix) {
			continue
		}

		seconds, err := strconv.ParseInt(strings.TrimPrefix(directive, maxAgePrefix), 10, 64)
		if err != nil || seconds <= 0 {
			continue
		}

		ttl := time.Duration(seconds) * time.Second
		if ttl < minTTL || ttl > maxTTL {
			return 0
		}
		return ttl
	}

	return 0
}
