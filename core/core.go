package core

import (
	"context"
	"fmt"
	"time"
)

// Metric names recorded by Core.
const (
	MetricValidationsTotal   = "amtoken_validations_total"
	MetricValidationDuration = "amtoken_validation_duration_seconds"
)

// Verifier checks a compact token's structure, algorithm, signature and
// temporal claims, and returns the decoded claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*ClaimSet, error)
}

// ClaimPolicy applies business rules to verified claims and extracts the
// sender and action performer.
type ClaimPolicy interface {
	Evaluate(claims *ClaimSet, target string) (Success, error)
}

// Logger defines an optional logging interface for the core.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Core is the framework-agnostic token validation engine.
// It is safe for concurrent use once constructed.
type Core struct {
	verifier Verifier
	policy   ClaimPolicy
	logger   Logger
	metrics  Metrics
	tracer   Tracer
}

// Validate runs the pipeline for token against the expected target
// (audience). Steps run in order and the first failure ends the call:
//   - an empty token is a MalformedTokenError
//   - the Verifier produces the ClaimSet or a token/infrastructure failure
//   - the ClaimPolicy produces the Success or a policy failure
func (c *Core) Validate(ctx context.Context, token, target string) (res ValidationResult) {
	ctx, span := c.tracer.StartSpan(ctx, "amtoken.Validate")
	start := time.Now()
	defer func() {
		c.record(span, res, time.Since(start))
	}()

	if token == "" {
		return Failure{Err: NewValidationError(KindMalformedToken, ErrMalformedToken.Message, ErrTokenMissing)}
	}

	claims, err := c.verifier.Verify(ctx, token)
	if err != nil {
		return NewFailure(err, KindSignatureInvalid)
	}

	return c.evaluate(claims, target)
}

func (c *Core) evaluate(claims *ClaimSet, target string) (res ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failure{Err: NewValidationError(KindClaimValidation, ErrClaimValidation.Message, fmt.Errorf("panic during claim evaluation: %v", r))}
		}
	}()

	success, err := c.policy.Evaluate(claims, target)
	if err != nil {
		return NewFailure(err, KindClaimValidation)
	}
	return success
}

func (c *Core) record(span Span, res ValidationResult, duration time.Duration) {
	defer span.Finish()

	tags := map[string]string{"result": "success", "kind": "", "category": ""}
	if f, ok := res.(Failure); ok {
		tags["result"] = "failure"
		tags["kind"] = string(f.Kind())
		tags["category"] = string(f.Kind().Category())

		if c.logger != nil {
			c.logger.Warn("Token validation failed",
				"kind", f.Kind(),
				"error", f.Error(),
				"duration", duration)
		}
	} else if c.logger != nil {
		c.logger.Debug("Token validated successfully", "duration", duration)
	}

	for k, v := range tags {
		span.SetTag(k, v)
	}
	c.metrics.IncCounter(MetricValidationsTotal, tags)
	c.metrics.ObserveHistogram(MetricValidationDuration, duration.Seconds(), map[string]string{"result": tags["result"]})
}
