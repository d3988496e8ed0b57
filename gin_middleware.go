package amtokenmiddleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// GinContextKey is the gin.Context key holding the core.Success of a
// validated request.
const GinContextKey = "amtoken"

// ErrGinSuccessNotFound is returned by GetGinSuccess when the request was
// not validated by the Gin middleware.
var ErrGinSuccessNotFound = errors.New("no validation result found in gin context")

// GinErrorHandler writes the response for a rejected request. It must abort
// the context.
type GinErrorHandler func(c *gin.Context, err error)

// GinOption configures the Gin middleware.
type GinOption func(*GinMiddleware)

// GinMiddleware runs a Middleware's validation inside Gin.
type GinMiddleware struct {
	middleware   *Middleware
	errorHandler GinErrorHandler
}

// NewGin wraps m for Gin. m's extractor, target, logger, OPTIONS and
// exclusion settings apply; its http ErrorHandler does not.
//
// Example:
//
//	router := gin.New()
//	router.POST("/api/expense", amtokenmiddleware.NewGin(m).CheckTokenGin(), handler)
func NewGin(m *Middleware, opts ...GinOption) *GinMiddleware {
	g := &GinMiddleware{
		middleware:   m,
		errorHandler: DefaultGinErrorHandler,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithGinErrorHandler sets the handler for rejected requests.
// Default: DefaultGinErrorHandler.
func WithGinErrorHandler(h GinErrorHandler) GinOption {
	return func(g *GinMiddleware) {
		if h != nil {
			g.errorHandler = h
		}
	}
}

// DefaultGinErrorHandler aborts with the same status, headers and body as
// DefaultErrorHandler.
func DefaultGinErrorHandler(c *gin.Context, err error) {
	status, resp, challenge := ResponseFor(err)
	if challenge != "" {
		c.Header("WWW-Authenticate", challenge)
	}
	c.AbortWithStatusJSON(status, resp)
}

// CheckTokenGin returns the gin.HandlerFunc that validates each request. On
// success the core.Success is stored under GinContextKey and in the request
// context.
func (g *GinMiddleware) CheckTokenGin() gin.HandlerFunc {
	m := g.middleware

	return func(c *gin.Context) {
		if m.Skip(c.Request) {
			c.Next()
			return
		}

		success, err := m.Authenticate(c.Request)
		if err != nil {
			g.errorHandler(c, err)
			if !c.IsAborted() {
				c.Abort()
			}
			return
		}

		c.Set(GinContextKey, success)
		c.Request = c.Request.Clone(core.SetSuccess(c.Request.Context(), success))
		c.Next()
	}
}

// GetGinSuccess returns the result stored by CheckTokenGin.
func GetGinSuccess(c *gin.Context) (core.Success, error) {
	value, ok := c.Get(GinContextKey)
	if !ok {
		return core.Success{}, ErrGinSuccessNotFound
	}
	success, ok := value.(core.Success)
	if !ok {
		return core.Success{}, ErrGinSuccessNotFound
	}
	return success, nil
}
