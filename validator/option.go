package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
)

// Option is how options for the Validator are set up.
// Options return errors to enable validation during construction.
type Option func(*Validator) error

// WithKeyProvider sets the source of verification keys.
// This is a required option.
func WithKeyProvider(provider KeyProvider) Option {
	return func(v *Validator) error {
		if provider == nil {
			return errors.New("key provider cannot be nil")
		}
		v.keyProvider = provider
		return nil
	}
}

// WithAllowedAlgorithms replaces the algorithm allow-list.
//
// Accepted values: RS256, RS384, RS512, PS256, PS384, PS512, ES256, ES384,
// ES512, EdDSA. "none" and the HMAC algorithms are always rejected.
func WithAllowedAlgorithms(algs ...jwa.SignatureAlgorithm) Option {
	return func(v *Validator) error {
		if len(algs) == 0 {
			return errors.New("at least one algorithm must be allowed")
		}
		for _, alg := range algs {
			if !supportedAlgorithms[alg] {
				return fmt.Errorf("unsupported signature algorithm: %s", alg)
			}
		}
		v.allowedAlgorithms = algorithmSet(algs)
		return nil
	}
}

// WithAllowedClockSkew sets the tolerance applied to exp, nbf and iat.
// Must be between 0 and 5 minutes. Defaults to 30 seconds.
func WithAllowedClockSkew(skew time.Duration) Option {
	return func(v *Validator) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		if skew > MaxAllowedClockSkew {
			return fmt.Errorf("clock skew cannot exceed %s", MaxAllowedClockSkew)
		}
		v.allowedClockSkew = skew
		return nil
	}
}

// WithClock sets the time source used for temporal checks.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		v.clock = clock
		return nil
	}
}
