package core

import "errors"

// Sentinel errors for token validation.
var (
	// ErrTokenMissing is returned when no token was supplied.
	ErrTokenMissing = errors.New("token missing")

	// ErrTokenInvalid is matched by every *ValidationError, so callers can
	// tell a rejected token apart from a programming error with errors.Is.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSuccessNotFound is returned when no validation result is stored in the context.
	ErrSuccessNotFound = errors.New("validation result not found in context")
)

// ErrorKind is a machine-readable classification of a validation failure.
type ErrorKind string

// Error kinds, grouped by the stage that produces them.
const (
	// Identity provider could not be reached or returned unusable data.
	KindMetadataFetch ErrorKind = "metadata_fetch_error"
	KindKeyNotFound   ErrorKind = "key_not_found_error"

	// The token itself was rejected.
	KindMalformedToken       ErrorKind = "malformed_token_error"
	KindUnsupportedAlgorithm ErrorKind = "unsupported_algorithm_error"
	KindSignatureInvalid     ErrorKind = "signature_invalid_error"
	KindTokenExpired         ErrorKind = "token_expired_error"
	KindTokenNotYetValid     ErrorKind = "token_not_yet_valid_error"

	// The claims did not satisfy the business policy.
	KindInvalidIssuer   ErrorKind = "invalid_issuer_error"
	KindMissingAudience ErrorKind = "missing_audience_error"
	KindInvalidAudience ErrorKind = "invalid_audience_error"
	KindInvalidAppID    ErrorKind = "invalid_app_id_error"
	KindClaimValidation ErrorKind = "claim_validation_error"
)

// Category groups error kinds by where the failure originated.
type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryToken          Category = "token"
	CategoryPolicy         Category = "policy"
)

// Category reports which family the kind belongs to.
func (k ErrorKind) Category() Category {
	switch k {
	case KindMetadataFetch, KindKeyNotFound:
		return CategoryInfrastructure
	case KindInvalidIssuer, KindMissingAudience, KindInvalidAudience, KindInvalidAppID, KindClaimValidation:
		return CategoryPolicy
	default:
		return CategoryToken
	}
}

// Sentinels for each kind. errors.Is(err, ErrTokenExpired) is true for any
// *ValidationError of kind KindTokenExpired, whatever its message.
var (
	ErrMetadataFetch        = &ValidationError{Kind: KindMetadataFetch, Message: "could not fetch identity provider metadata"}
	ErrKeyNotFound          = &ValidationError{Kind: KindKeyNotFound, Message: "signing key not found"}
	ErrMalformedToken       = &ValidationError{Kind: KindMalformedToken, Message: "malformed token"}
	ErrUnsupportedAlgorithm = &ValidationError{Kind: KindUnsupportedAlgorithm, Message: "unsupported signing algorithm"}
	ErrSignatureInvalid     = &ValidationError{Kind: KindSignatureInvalid, Message: "invalid token signature"}
	ErrTokenExpired         = &ValidationError{Kind: KindTokenExpired, Message: "token is expired"}
	ErrTokenNotYetValid     = &ValidationError{Kind: KindTokenNotYetValid, Message: "token is not valid yet"}
	ErrInvalidIssuer        = &ValidationError{Kind: KindInvalidIssuer, Message: "invalid token issuer"}
	ErrMissingAudience      = &ValidationError{Kind: KindMissingAudience, Message: "audience not found in the token"}
	ErrInvalidAudience      = &ValidationError{Kind: KindInvalidAudience, Message: "invalid token audience"}
	ErrInvalidAppID         = &ValidationError{Kind: KindInvalidAppID, Message: "invalid token appid"}
	ErrClaimValidation      = &ValidationError{Kind: KindClaimValidation, Message: "claims could not be validated"}
)

// ValidationError wraps token validation errors with a kind and context.
// It provides structured error information that can be used for
// logging, metrics, and choosing a response status.
type ValidationError struct {
	// Kind is the machine-readable classification.
	Kind ErrorKind

	// Message is a human-readable error message
	Message string

	// Details contains the underlying error
	Details error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Details != nil {
		return e.Message + ": " + e.Details.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Details
}

// Is matches ErrTokenInvalid and any *ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	if target == ErrTokenInvalid {
		return true
	}
	other, ok := target.(*ValidationError)
	return ok && other.Kind == e.Kind
}

// NewValidationError creates a new ValidationError with the given kind and message.
func NewValidationError(kind ErrorKind, message string, details error) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

// KindOf returns the kind of the first *ValidationError in err's chain,
// or an empty kind if there is none.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

func asValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
