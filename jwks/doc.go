/*
Package jwks resolves the public keys used to verify actionable message tokens.

A key provider turns a token's key id and algorithm into a verification key:
it reads the identity provider's discovery document, fetches the key set
named by its jwks_uri and selects the single key with that id.

# Choosing the Right Provider

Provider: fetches both documents on every call
  - No shared state between calls
  - Two HTTPS round trips per token
  - Use for: tests, very low traffic

CachingProvider: production default
  - Discovery result and key set cached (default TTL: 15 minutes)
  - A longer Cache-Control max-age on the key set is honoured, up to 7 days
  - Key id miss refetches the key set once, at most once per minute
  - Concurrent fetches of the same document share one request
  - Pluggable Cache: in-memory (default) or Redis

# Basic Usage

	provider, err := jwks.NewCachingProvider(
	    jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL),
	)
	if err != nil {
	    log.Fatal(err)
	}

	v, err := validator.New(validator.WithKeyProvider(provider))

# Sharing the Cache Between Instances

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	provider, err := jwks.NewCachingProvider(
	    jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL),
	    jwks.WithCache(jwks.NewRedisCache(rdb, "amtoken:")),
	)

Cache read and write failures are logged and treated as misses, so an
unavailable Redis degrades to direct fetches rather than failed requests.

# Key Selection

The key set must contain exactly one key with the token's kid. The key's use,
when present, must be "sig". When the key declares an alg it must equal the
token's algorithm; otherwise its type must fit the algorithm (RSA for RS* and
PS*, EC for ES*, OKP for EdDSA).

# Errors

Every error is a *core.ValidationError:
  - core.KindMetadataFetch: the discovery document could not be fetched or used
  - core.KindKeyNotFound: the key set could not be fetched or parsed, or no
    single usable key has the token's kid
  - core.KindUnsupportedAlgorithm: the key is bound to a different algorithm

# Transport

All requests are HTTPS only and never follow redirects. The default client
has 5s connect, 10s response header and 15s overall timeouts. Transient
failures can be retried with WithRetry.
*/
package jwks
