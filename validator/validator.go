package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// Clock skew bounds.
const (
	DefaultAllowedClockSkew = 30 * time.Second
	MaxAllowedClockSkew     = 5 * time.Minute
)

// DefaultAllowedAlgorithms are the asymmetric algorithms accepted unless
// WithAllowedAlgorithms says otherwise.
var DefaultAllowedAlgorithms = []jwa.SignatureAlgorithm{
	jwa.RS256, jwa.RS384, jwa.RS512,
	jwa.PS256, jwa.PS384, jwa.PS512,
	jwa.ES256, jwa.ES384, jwa.ES512,
}

// supportedAlgorithms can be allowed through WithAllowedAlgorithms. Symmetric
// algorithms and "none" are never accepted: the verification key comes from
// a published key set.
var supportedAlgorithms = map[jwa.SignatureAlgorithm]bool{
	jwa.RS256: true, jwa.RS384: true, jwa.RS512: true,
	jwa.PS256: true, jwa.PS384: true, jwa.PS512: true,
	jwa.ES256: true, jwa.ES384: true, jwa.ES512: true,
	jwa.EdDSA: true,
}

// KeyProvider resolves the verification key for a token's key id and
// algorithm. jwks.Provider and jwks.CachingProvider implement it.
type KeyProvider interface {
	SigningKey(ctx context.Context, kid string, alg jwa.SignatureAlgorithm) (jwk.Key, error)
}

// Validator verifies compact signed tokens.
// It is safe for concurrent use once constructed.
type Validator struct {
	keyProvider       KeyProvider                     // Required.
	allowedAlgorithms map[jwa.SignatureAlgorithm]bool // Optional.
	allowedClockSkew  time.Duration                   // Optional.
	clock             func() time.Time                // Optional.
}

// New creates a new Validator with the provided options.
//
// Required options:
//   - WithKeyProvider: resolves signing keys
//
// Optional options:
//   - WithAllowedAlgorithms: defaults to DefaultAllowedAlgorithms
//   - WithAllowedClockSkew: defaults to 30 seconds
//   - WithClock: defaults to time.Now
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		allowedClockSkew: DefaultAllowedClockSkew,
		clock:            time.Now,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if v.keyProvider == nil {
		return nil, errors.New("key provider is required (use WithKeyProvider)")
	}
	if v.allowedAlgorithms == nil {
		v.allowedAlgorithms = algorithmSet(DefaultAllowedAlgorithms)
	}

	return v, nil
}

// Verify checks the token's structure, algorithm, signature and temporal
// claims, in that order, and returns its claims. Every error is a
// *core.ValidationError.
func (v *Validator) Verify(ctx context.Context, token string) (*core.ClaimSet, error) {
	header, err := parseCompact(token)
	if err != nil {
		return nil, malformed(err)
	}

	alg := jwa.SignatureAlgorithm(header.Algorithm)
	if !v.allowedAlgorithms[alg] {
		return nil, core.NewValidationError(
			core.KindUnsupportedAlgorithm,
			core.ErrUnsupportedAlgorithm.Message,
			fmt.Errorf("algorithm %q is not allowed", header.Algorithm),
		)
	}

	if !header.signed {
		return nil, malformed(errors.New("token signature is empty"))
	}

	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, malformed(fmt.Errorf("could not parse the token: %w", err))
	}
	if n := len(msg.Signatures()); n != 1 {
		return nil, malformed(fmt.Errorf("token has %d signatures, expected 1", n))
	}

	key, err := v.keyProvider.SigningKey(ctx, header.KeyID, alg)
	if err != nil {
		if core.KindOf(err) == "" {
			err = core.NewValidationError(core.KindKeyNotFound, core.ErrKeyNotFound.Message, err)
		}
		return nil, err
	}

	if _, err := jws.Verify([]byte(token), jws.WithKey(alg, key)); err != nil {
		return nil, core.NewValidationError(core.KindSignatureInvalid, core.ErrSignatureInvalid.Message, err)
	}

	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil, malformed(fmt.Errorf("could not decode the token claims: %w", err))
	}

	if err := v.validateTime(parsed); err != nil {
		return nil, err
	}

	return claimSet(parsed), nil
}

func (v *Validator) validateTime(token jwt.Token) error {
	err := jwt.Validate(token,
		jwt.WithClock(jwt.ClockFunc(v.clock)),
		jwt.WithAcceptableSkew(v.allowedClockSkew),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired()):
		return core.NewValidationError(core.KindTokenExpired, core.ErrTokenExpired.Message, err)
	case errors.Is(err, jwt.ErrTokenNotYetValid()), errors.Is(err, jwt.ErrInvalidIssuedAt()):
		return core.NewValidationError(core.KindTokenNotYetValid, core.ErrTokenNotYetValid.Message, err)
	default:
		return malformed(err)
	}
}

func claimSet(token jwt.Token) *core.ClaimSet {
	return &core.ClaimSet{
		Issuer:    token.Issuer(),
		Subject:   token.Subject(),
		Audience:  token.Audience(),
		Expiry:    token.Expiration(),
		NotBefore: token.NotBefore(),
		IssuedAt:  token.IssuedAt(),
		Private:   token.PrivateClaims(),
	}
}

func malformed(err error) error {
	return core.NewValidationError(core.KindMalformedToken, core.ErrMalformedToken.Message, err)
}

func algorithmSet(algs []jwa.SignatureAlgorithm) map[jwa.SignatureAlgorithm]bool {
	set := make(map[jwa.SignatureAlgorithm]bool, len(algs))
	for _, alg := range algs {
		set[alg] = true
	}
	return set
}
