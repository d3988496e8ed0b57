package amtokenmiddleware

import (
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidAuthorizationHeader is returned when the Authorization header is
// present but is not exactly "Bearer <token>".
var ErrInvalidAuthorizationHeader = errors.New("authorization header format must be Bearer {token}")

// TokenExtractor is a function that takes a request as input and returns
// either a token or an error. An error should only be returned if an attempt
// to specify a token was found, but the information was somehow incorrectly
// formed. In the case where a token is simply not present, this should not
// be treated as an error. An empty string should be returned in that case.
type TokenExtractor func(r *http.Request) (string, error)

// AuthHeaderTokenExtractor is a TokenExtractor that takes a request
// and extracts the token from the Authorization header.
//
// The header must hold exactly two segments separated by a single space, the
// first being "Bearer" in any case. Tabs, extra spaces or a third segment are
// rejected with ErrInvalidAuthorizationHeader.
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil // No error, just no token.
	}

	return ParseBearer(authHeader)
}

// ParseBearer returns the token of a "Bearer <token>" credential string.
func ParseBearer(value string) (string, error) {
	parts := strings.Split(value, " ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrInvalidAuthorizationHeader
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidAuthorizationHeader
	}
	if strings.ContainsAny(parts[1], "\t\r\n") {
		return "", ErrInvalidAuthorizationHeader
	}

	return parts[1], nil
}
