package amtokenmiddleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// ErrorResponse is the JSON body written by DefaultErrorHandler. It carries a
// fixed description per failure kind and never the failure detail, which is
// logged instead.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
}

// RFC 6750 error codes.
const (
	errInvalidRequest    = "invalid_request"
	errInvalidToken      = "invalid_token"
	errInsufficientScope = "insufficient_scope"
	errServerError       = "server_error"
)

var kindDescriptions = map[core.ErrorKind]string{
	core.KindMetadataFetch:        "Unable to verify the access token",
	core.KindKeyNotFound:          "Unable to verify the access token",
	core.KindMalformedToken:       "The access token is malformed",
	core.KindUnsupportedAlgorithm: "The access token uses an unsupported algorithm",
	core.KindSignatureInvalid:     "The access token signature is invalid",
	core.KindTokenExpired:         "The access token expired",
	core.KindTokenNotYetValid:     "The access token is not yet valid",
	core.KindInvalidIssuer:        "The access token was issued by an untrusted issuer",
	core.KindMissingAudience:      "The access token has no audience",
	core.KindInvalidAudience:      "The access token audience does not match",
	core.KindInvalidAppID:         "The access token was issued to another application",
	core.KindClaimValidation:      "The access token claims could not be validated",
}

// ErrorHandler is a handler which is called when an error occurs in the
// Middleware. It decides the response when a token is missing, malformed or
// rejected. err is ErrInvalidAuthorizationHeader, an error matching
// core.ErrTokenMissing, a core.Failure (use core.KindOf), or an error from
// the target function.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler is the default error handler implementation for the
// Middleware. If an error handler is not provided via the WithErrorHandler
// option this will be used. See ResponseFor for the status mapping.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, resp, challenge := ResponseFor(err)

	w.Header().Set("Content-Type", "application/json")
	if challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ResponseFor maps a middleware error to a status code, a response body and
// a WWW-Authenticate challenge (empty when none applies):
//   - a missing token or a malformed Authorization header: 401
//   - token and infrastructure failures: 401
//   - policy failures (issuer, audience, appid, claims): 403
//   - anything else: 500
func ResponseFor(err error) (int, ErrorResponse, string) {
	switch {
	case errors.Is(err, ErrInvalidAuthorizationHeader):
		resp := ErrorResponse{Error: errInvalidRequest, ErrorDescription: "Authorization header format must be Bearer {token}"}
		return http.StatusUnauthorized, resp, challenge(resp)
	case errors.Is(err, core.ErrTokenMissing):
		return http.StatusUnauthorized, ErrorResponse{Error: errInvalidRequest, ErrorDescription: "Authorization header required"}, "Bearer"
	}

	kind := core.KindOf(err)
	if kind == "" {
		return http.StatusInternalServerError, ErrorResponse{
			Error:            errServerError,
			ErrorDescription: "An internal error occurred while processing the request",
		}, ""
	}

	resp := ErrorResponse{
		Error:            errInvalidToken,
		ErrorDescription: kindDescriptions[kind],
		ErrorCode:        string(kind),
	}
	if resp.ErrorDescription == "" {
		resp.ErrorDescription = "The access token is invalid"
	}

	status := http.StatusUnauthorized
	if kind.Category() == core.CategoryPolicy {
		status = http.StatusForbidden
		resp.Error = errInsufficientScope
	}
	return status, resp, challenge(resp)
}

func challenge(resp ErrorResponse) string {
	return fmt.Sprintf(`Bearer error=%q, error_description=%q`, resp.Error, resp.ErrorDescription)
}
