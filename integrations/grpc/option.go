package grpc

import (
	"errors"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
)

// Option configures the interceptor.
type Option func(*Interceptor) error

// WithValidator sets the token validator (REQUIRED), usually the pipeline
// returned by amtokenmiddleware.NewPipeline.
//
// Example:
//
//	interceptor, _ := grpc.New(
//	    grpc.WithValidator(pipeline),
//	    grpc.WithTarget("https://api.example.com"),
//	    grpc.WithLogger(logger),
//	)
func WithValidator(v amtokenmiddleware.TokenValidator) Option {
	return func(i *Interceptor) error {
		if v == nil {
			return errors.New("validator cannot be nil")
		}
		i.validator = v
		return nil
	}
}

// WithTarget sets the expected audience (REQUIRED), the https origin the
// actionable messages were registered for.
func WithTarget(target string) Option {
	return func(i *Interceptor) error {
		u, err := fetch.RequireHTTPS(target)
		if err != nil {
			return errors.New("target must be an absolute https URL")
		}
		if u.Path != "" && u.Path != "/" {
			return errors.New("target must not have a path")
		}
		i.target = target
		return nil
	}
}

// WithLogger sets an optional logger for the interceptor.
func WithLogger(logger Logger) Option {
	return func(i *Interceptor) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		i.logger = logger
		return nil
	}
}

// WithTokenExtractor sets a custom token extractor function.
// Default is MetadataTokenExtractor.
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) error {
		if extractor == nil {
			return errors.New("token extractor cannot be nil")
		}
		i.tokenExtractor = extractor
		return nil
	}
}

// WithErrorHandler sets a custom error handler function.
// Default is DefaultErrorHandler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(i *Interceptor) error {
		if handler == nil {
			return errors.New("error handler cannot be nil")
		}
		i.errorHandler = handler
		return nil
	}
}

// WithExcludedMethods excludes gRPC methods from validation.
// Methods use the "/package.Service/Method" format, e.g. "/grpc.health.v1.Health/Check".
func WithExcludedMethods(methods ...string) Option {
	return func(i *Interceptor) error {
		for _, method := range methods {
			i.excludedMethods[method] = true
		}
		return nil
	}
}
