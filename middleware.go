package amtokenmiddleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// Logger defines an optional logging interface compatible with log/slog.
// This is the same interface used by core for consistent logging across the stack.
type Logger = core.Logger

// TokenValidator runs the validation pipeline for a token and its expected
// audience. *core.Core implements it.
type TokenValidator interface {
	Validate(ctx context.Context, token, target string) core.ValidationResult
}

// ExclusionURLHandler is a function that takes in a http.Request and returns
// true if the request should be excluded from token validation.
type ExclusionURLHandler func(r *http.Request) bool

// Middleware validates the bearer token of each request before calling the
// next handler.
type Middleware struct {
	validator           TokenValidator
	errorHandler        ErrorHandler
	tokenExtractor      TokenExtractor
	targetFunc          TargetFunc
	validateOnOptions   bool
	exclusionURLHandler ExclusionURLHandler
	logger              Logger
}

// New constructs a new Middleware instance with the supplied options.
//
// Required options:
//   - WithValidator: usually the *core.Core returned by NewPipeline
//   - WithTarget or WithTargetFunc: the expected audience
//
// Example:
//
//	pipeline, err := amtokenmiddleware.NewPipeline(amtokenmiddleware.PipelineConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	middleware, err := amtokenmiddleware.New(
//	    amtokenmiddleware.WithValidator(pipeline),
//	    amtokenmiddleware.WithTarget("https://api.example.com"),
//	)
//	if err != nil {
//	    log.Fatalf("failed to create middleware: %v", err)
//	}
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{
		validateOnOptions: true,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid middleware configuration: %w", err)
	}

	m.applyDefaults()

	return m, nil
}

// validate ensures all required fields are set
func (m *Middleware) validate() error {
	if m.validator == nil {
		return ErrValidatorNil
	}
	if m.targetFunc == nil {
		return ErrTargetRequired
	}
	return nil
}

// applyDefaults sets secure default values for optional fields
func (m *Middleware) applyDefaults() {
	if m.errorHandler == nil {
		m.errorHandler = DefaultErrorHandler
	}
	if m.tokenExtractor == nil {
		m.tokenExtractor = AuthHeaderTokenExtractor
	}
}

// GetSuccess retrieves the sender and action performer stored by CheckToken.
//
// Example:
//
//	s, err := amtokenmiddleware.GetSuccess(r.Context())
//	if err != nil {
//	    http.Error(w, "not authenticated", http.StatusInternalServerError)
//	    return
//	}
//	fmt.Println(s.Sender, s.ActionPerformer)
func GetSuccess(ctx context.Context) (core.Success, error) {
	return core.GetSuccess(ctx)
}

// CheckToken is the main Middleware function which performs the main logic. It
// is passed a http.Handler which will be called if the token passes validation.
func (m *Middleware) CheckToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		success, err := m.Authenticate(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		m.debug("token validation successful, setting result in context")
		r = r.Clone(core.SetSuccess(r.Context(), success))
		next.ServeHTTP(w, r)
	})
}

// Skip reports whether r bypasses validation: an excluded URL, or an
// OPTIONS request when WithValidateOnOptions(false) was given.
func (m *Middleware) Skip(r *http.Request) bool {
	if m.exclusionURLHandler != nil && m.exclusionURLHandler(r) {
		m.debug("skipping token validation for excluded URL", "method", r.Method, "path", r.URL.Path)
		return true
	}
	if !m.validateOnOptions && r.Method == http.MethodOptions {
		m.debug("skipping token validation for OPTIONS request")
		return true
	}
	return false
}

// Authenticate extracts and validates the token of r without writing a
// response. Framework adapters use it to plug the pipeline into their own
// request types. The error is ErrInvalidAuthorizationHeader, a core.Failure
// or an error from the target function.
func (m *Middleware) Authenticate(r *http.Request) (core.Success, error) {
	token, err := m.tokenExtractor(r)
	if err != nil {
		m.warn("failed to extract token from request", "error", err, "method", r.Method, "path", r.URL.Path)
		return core.Success{}, fmt.Errorf("error extracting token: %w", err)
	}

	target, err := m.targetFunc(r)
	if err != nil {
		m.logError("failed to resolve the expected audience", "error", err, "method", r.Method, "path", r.URL.Path)
		return core.Success{}, fmt.Errorf("error resolving target: %w", err)
	}

	m.debug("validating token", "target", target)

	success, err := core.Outcome(m.validator.Validate(r.Context(), token, target))
	if err != nil {
		m.warn("token validation failed",
			"kind", core.KindOf(err),
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		return core.Success{}, err
	}

	return success, nil
}

func (m *Middleware) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Middleware) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *Middleware) logError(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}
