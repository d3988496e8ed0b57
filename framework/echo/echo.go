// Package amtokenecho plugs the actionable message token middleware into Echo.
package amtokenecho

import (
	"errors"

	"github.com/labstack/echo/v4"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// DefaultContextKey is the echo.Context key holding the core.Success.
const DefaultContextKey = "amtoken"

// ErrMissingSuccess is returned by GetSuccess when the request was not
// validated by the middleware.
var ErrMissingSuccess = errors.New("no validation result found in echo context")

// Option is a function that configures the middleware
type Option func(*config)

type config struct {
	errorHandler func(echo.Context, error) error
	contextKey   string
}

// WithErrorHandler sets a custom error handler. Its return value is returned
// by the middleware, so it may also hand the error to Echo's HTTPErrorHandler.
func WithErrorHandler(handler func(echo.Context, error) error) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithContextKey sets a custom context key to store the result.
func WithContextKey(key string) Option {
	return func(c *config) {
		if key != "" {
			c.contextKey = key
		}
	}
}

// New returns an echo.MiddlewareFunc validating each request with m. m's
// extractor, target, logger, OPTIONS and exclusion settings apply.
//
//	e := echo.New()
//	e.POST("/api/expense", handler, amtokenecho.New(m))
func New(m *amtokenmiddleware.Middleware, opts ...Option) echo.MiddlewareFunc {
	cfg := &config{
		errorHandler: DefaultErrorHandler,
		contextKey:   DefaultContextKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.Skip(c.Request()) {
				return next(c)
			}

			success, err := m.Authenticate(c.Request())
			if err != nil {
				return cfg.errorHandler(c, err)
			}

			c.Set(cfg.contextKey, success)
			c.SetRequest(c.Request().WithContext(core.SetSuccess(c.Request().Context(), success)))
			return next(c)
		}
	}
}

// DefaultErrorHandler answers with the same status, headers and body as
// amtokenmiddleware.DefaultErrorHandler.
func DefaultErrorHandler(c echo.Context, err error) error {
	status, resp, challenge := amtokenmiddleware.ResponseFor(err)
	if challenge != "" {
		c.Response().Header().Set("WWW-Authenticate", challenge)
	}
	return c.JSON(status, resp)
}

// GetSuccess returns the result stored by the middleware under key, or
// DefaultContextKey when key is empty.
func GetSuccess(c echo.Context, key string) (core.Success, error) {
	if key == "" {
		key = DefaultContextKey
	}
	s, ok := c.Get(key).(core.Success)
	if !ok {
		return core.Success{}, ErrMissingSuccess
	}
	return s, nil
}
