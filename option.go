package amtokenmiddleware

import (
	"errors"
	"net/http"

	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
)

// Option configures the Middleware.
// Returns error for validation failures.
type Option func(*Middleware) error

// Sentinel errors for configuration validation
var (
	ErrValidatorNil       = errors.New("validator cannot be nil (use WithValidator)")
	ErrTargetRequired     = errors.New("expected audience is required (use WithTarget or WithTargetFunc)")
	ErrErrorHandlerNil    = errors.New("errorHandler cannot be nil")
	ErrTokenExtractorNil  = errors.New("tokenExtractor cannot be nil")
	ErrTargetFuncNil      = errors.New("targetFunc cannot be nil")
	ErrExclusionUrlsEmpty = errors.New("exclusion URLs list cannot be empty")
	ErrLoggerNil          = errors.New("logger cannot be nil")
)

// WithValidator sets the token validator (REQUIRED). Pass the *core.Core
// built by NewPipeline, or one assembled with core.New.
func WithValidator(v TokenValidator) Option {
	return func(m *Middleware) error {
		if v == nil {
			return ErrValidatorNil
		}
		m.validator = v
		return nil
	}
}

// WithTarget sets a fixed expected audience, the https origin of the service
// (e.g. "https://api.example.com").
func WithTarget(target string) Option {
	return func(m *Middleware) error {
		u, err := fetch.RequireHTTPS(target)
		if err != nil {
			return errors.New("target must be an absolute https URL")
		}
		if u.Path != "" && u.Path != "/" {
			return errors.New("target must not have a path")
		}
		m.targetFunc = func(*http.Request) (string, error) {
			return target, nil
		}
		return nil
	}
}

// WithTargetFunc derives the expected audience from each request, e.g.
// TargetFromRequest or TargetFromProxiedRequest. It overrides WithTarget.
func WithTargetFunc(f TargetFunc) Option {
	return func(m *Middleware) error {
		if f == nil {
			return ErrTargetFuncNil
		}
		m.targetFunc = f
		return nil
	}
}

// WithValidateOnOptions sets whether OPTIONS requests should have their token validated.
//
// Default: true (OPTIONS requests are validated)
func WithValidateOnOptions(value bool) Option {
	return func(m *Middleware) error {
		m.validateOnOptions = value
		return nil
	}
}

// WithErrorHandler sets the handler called when errors occur during token validation.
// See the ErrorHandler type for more information.
//
// Default: DefaultErrorHandler
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Middleware) error {
		if h == nil {
			return ErrErrorHandlerNil
		}
		m.errorHandler = h
		return nil
	}
}

// WithTokenExtractor sets the function to extract the token from the request.
//
// Default: AuthHeaderTokenExtractor
func WithTokenExtractor(e TokenExtractor) Option {
	return func(m *Middleware) error {
		if e == nil {
			return ErrTokenExtractorNil
		}
		m.tokenExtractor = e
		return nil
	}
}

// WithExclusionUrls configures URLs to exclude from token validation, such
// as health checks. URLs can be full URLs or just paths.
func WithExclusionUrls(exclusions []string) Option {
	return func(m *Middleware) error {
		if len(exclusions) == 0 {
			return ErrExclusionUrlsEmpty
		}
		m.exclusionURLHandler = func(r *http.Request) bool {
			requestFullURL := r.URL.String()
			requestPath := r.URL.Path

			for _, exclusion := range exclusions {
				if requestFullURL == exclusion || requestPath == exclusion {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithLogger sets an optional logger for the middleware.
//
// The logger interface is compatible with log/slog.Logger; NewZapLogger,
// NewZerologLogger and NewLogrusLogger adapt other loggers.
//
// Example:
//
//	middleware, err := amtokenmiddleware.New(
//	    amtokenmiddleware.WithValidator(pipeline),
//	    amtokenmiddleware.WithTarget("https://api.example.com"),
//	    amtokenmiddleware.WithLogger(slog.Default()),
//	)
func WithLogger(logger Logger) Option {
	return func(m *Middleware) error {
		if logger == nil {
			return ErrLoggerNil
		}
		m.logger = logger
		return nil
	}
}
