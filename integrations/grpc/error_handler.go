package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// ErrorHandler converts validation errors to gRPC status errors.
type ErrorHandler func(error) error

// DefaultErrorHandler maps validation errors to gRPC status codes:
//   - a malformed authorization entry: InvalidArgument
//   - a missing token: Unauthenticated "missing credentials"
//   - token and identity provider failures: Unauthenticated
//   - issuer, audience, appid and other claim failures: PermissionDenied
//   - anything else: Internal
//
// The status message is the fixed message of the error kind. The underlying
// detail is never sent to the client.
func DefaultErrorHandler(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrMultipleAuthHeaders) || errors.Is(err, amtokenmiddleware.ErrInvalidAuthorizationHeader) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, core.ErrTokenMissing) {
		return status.Error(codes.Unauthenticated, "missing credentials")
	}

	var validationErr *core.ValidationError
	if !errors.As(err, &validationErr) {
		return status.Error(codes.Internal, "unable to validate the request")
	}

	if validationErr.Kind.Category() == core.CategoryPolicy {
		return status.Error(codes.PermissionDenied, validationErr.Message)
	}
	return status.Error(codes.Unauthenticated, validationErr.Message)
}
