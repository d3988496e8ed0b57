package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/metadata"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
)

// TokenExtractor extracts the bearer token from the incoming gRPC context.
// A missing token is returned as "" with a nil error.
type TokenExtractor func(ctx context.Context) (string, error)

// ErrMultipleAuthHeaders indicates multiple authorization metadata entries were provided.
var ErrMultipleAuthHeaders = errors.New("multiple authorization metadata entries are not allowed")

// MetadataTokenExtractor extracts the token from the "authorization" metadata
// key. The value follows the same rules as the HTTP Authorization header:
// exactly "Bearer <token>", scheme in any case, separated by a single space.
//
// gRPC normalizes incoming metadata keys to lowercase, so this extractor only
// checks the lowercase "authorization" key.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}

	values := md.Get("authorization")
	switch len(values) {
	case 0:
		return "", nil
	case 1:
		return amtokenmiddleware.ParseBearer(values[0])
	default:
		return "", ErrMultipleAuthHeaders
	}
}
