/*
Package validator verifies actionable message tokens using the lestrrat-go/jwx v2 library.

A Validator takes a compact token (header.payload.signature) and returns its
claims only if the token is well formed, uses an allowed algorithm, carries a
valid signature from a published key and is inside its validity window. It
does not look at issuer, audience or application id: that is the job of the
policy package.

# Steps

Verify runs these steps in order and stops at the first failure:

 1. Structure: three base64url segments, header with an alg, at most 1MB.
    Failure: core.KindMalformedToken.
 2. Algorithm: the header alg must be in the allow-list. This happens before
    any key is fetched, so "none" or HS256 tokens never cause network traffic.
    Failure: core.KindUnsupportedAlgorithm.
 3. Key: the KeyProvider resolves the header kid, bound to the same algorithm.
    Failure: core.KindMetadataFetch, core.KindKeyNotFound or
    core.KindUnsupportedAlgorithm.
 4. Signature: jws.Verify with the resolved key.
    Failure: core.KindSignatureInvalid.
 5. Time: exp, nbf and iat with the allowed clock skew.
    Failure: core.KindTokenExpired or core.KindTokenNotYetValid.

# Supported Algorithms

Allowed by default:
  - RS256, RS384, RS512 (RSASSA-PKCS1-v1_5)
  - PS256, PS384, PS512 (RSASSA-PSS)
  - ES256, ES384, ES512 (ECDSA)

EdDSA can be enabled with WithAllowedAlgorithms. "none" and HS256, HS384,
HS512 are never accepted.

# Basic Usage

	provider, err := jwks.NewCachingProvider(
	    jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL),
	)
	if err != nil {
	    log.Fatal(err)
	}

	v, err := validator.New(
	    validator.WithKeyProvider(provider),
	    validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
	    log.Fatal(err)
	}

	claims, err := v.Verify(ctx, token)
	if err != nil {
	    log.Println(core.KindOf(err), err)
	}

# Thread Safety

A Validator is immutable after New and safe for concurrent use.
*/
package validator
