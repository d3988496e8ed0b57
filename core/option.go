package core

import (
	"errors"
)

// Option is a function that configures the Core.
// Options return errors to enable validation during construction.
type Option func(*Core) error

// New creates a new Core instance with the provided options.
//
// The Core must be configured with a Verifier and a ClaimPolicy.
// All other options are optional and will use no-op defaults if not provided.
//
// Example:
//
//	c, err := core.New(
//	    core.WithVerifier(v),
//	    core.WithClaimPolicy(p),
//	    core.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(opts ...Option) (*Core, error) {
	c := &Core{
		metrics: NoopMetrics{},
		tracer:  NoopTracer{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate ensures all required fields are set.
func (c *Core) validate() error {
	if c.verifier == nil {
		return errors.New("verifier is required but not set (use WithVerifier option)")
	}
	if c.policy == nil {
		return errors.New("claim policy is required but not set (use WithClaimPolicy option)")
	}
	return nil
}

// WithVerifier sets the signature verifier. This is a required option.
func WithVerifier(v Verifier) Option {
	return func(c *Core) error {
		if v == nil {
			return errors.New("verifier cannot be nil")
		}
		c.verifier = v
		return nil
	}
}

// WithClaimPolicy sets the claim policy. This is a required option.
func WithClaimPolicy(p ClaimPolicy) Option {
	return func(c *Core) error {
		if p == nil {
			return errors.New("claim policy cannot be nil")
		}
		c.policy = p
		return nil
	}
}

// WithLogger sets an optional logger for the Core.
//
// Failures are logged at Warn with their kind and full detail, successes at
// Debug. Detail is never returned to remote callers by the adapters, so the
// log is the only place it appears.
func WithLogger(logger Logger) Option {
	return func(c *Core) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink. Default: NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(c *Core) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithTracer sets the tracer. Default: NoopTracer.
func WithTracer(t Tracer) Option {
	return func(c *Core) error {
		if t == nil {
			return errors.New("tracer cannot be nil")
		}
		c.tracer = t
		return nil
	}
}
