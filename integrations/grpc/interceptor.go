package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// Logger is the slog-shaped logger used across the module.
type Logger = core.Logger

// Interceptor validates actionable message tokens on gRPC servers.
type Interceptor struct {
	validator       amtokenmiddleware.TokenValidator
	target          string
	tokenExtractor  TokenExtractor
	errorHandler    ErrorHandler
	excludedMethods map[string]bool
	logger          Logger
}

// New creates a new gRPC interceptor with the provided options.
// WithValidator and WithTarget are required.
func New(opts ...Option) (*Interceptor, error) {
	interceptor := &Interceptor{
		tokenExtractor:  MetadataTokenExtractor,
		errorHandler:    DefaultErrorHandler,
		excludedMethods: make(map[string]bool),
	}

	for _, opt := range opts {
		if err := opt(interceptor); err != nil {
			return nil, err
		}
	}

	if interceptor.validator == nil {
		return nil, errors.New("validator is required, use WithValidator option")
	}
	if interceptor.target == "" {
		return nil, errors.New("target is required, use WithTarget option")
	}

	return interceptor, nil
}

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that validates
// the token and stores the core.Success in the handler context.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if i.excludedMethods[info.FullMethod] {
			i.debug("skipping token validation for excluded method", "method", info.FullMethod)
			return handler(ctx, req)
		}

		validatedCtx, err := i.validateRequest(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}

		return handler(validatedCtx, req)
	}
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor that
// validates the token once when the stream opens.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if i.excludedMethods[info.FullMethod] {
			i.debug("skipping token validation for excluded method", "method", info.FullMethod)
			return handler(srv, ss)
		}

		validatedCtx, err := i.validateRequest(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}

		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: validatedCtx})
	}
}

func (i *Interceptor) validateRequest(ctx context.Context, method string) (context.Context, error) {
	token, err := i.tokenExtractor(ctx)
	if err != nil {
		i.warn("failed to extract token from gRPC metadata", "error", err, "method", method)
		return ctx, i.errorHandler(err)
	}

	i.debug("validating token", "method", method, "target", i.target)

	success, err := core.Outcome(i.validator.Validate(ctx, token, i.target))
	if err != nil {
		i.warn("token validation failed",
			"kind", core.KindOf(err),
			"error", err,
			"method", method)
		return ctx, i.errorHandler(err)
	}

	return core.SetSuccess(ctx, success), nil
}

// GetSuccess retrieves the sender and action performer stored by the
// interceptors.
func GetSuccess(ctx context.Context) (core.Success, error) {
	return core.GetSuccess(ctx)
}

func (i *Interceptor) debug(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

func (i *Interceptor) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, args...)
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the context holding the validation result.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
