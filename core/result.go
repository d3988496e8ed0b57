package core

// ValidationResult is the outcome of a validation call. It is implemented by
// exactly two types, Success and Failure, so a result always carries either
// the extracted identities or an error, never both.
//
//	switch res := c.Validate(ctx, token, target).(type) {
//	case core.Success:
//	    fmt.Println(res.Sender, res.ActionPerformer)
//	case core.Failure:
//	    log.Println(res.Kind(), res)
//	}
type ValidationResult interface {
	validationResult()
}

// Success holds the identities extracted from a valid token.
type Success struct {
	// Sender is the address the actionable message was sent from.
	Sender string
	// ActionPerformer is the user who performed the action (the sub claim).
	ActionPerformer string
}

func (Success) validationResult() {}

// Failure holds the reason a token was rejected.
type Failure struct {
	Err *ValidationError
}

func (Failure) validationResult() {}

// Kind returns the error kind of the failure.
func (f Failure) Kind() ErrorKind {
	if f.Err == nil {
		return KindClaimValidation
	}
	return f.Err.Kind
}

// Error implements the error interface so a Failure can be returned or logged directly.
func (f Failure) Error() string {
	if f.Err == nil {
		return ErrClaimValidation.Message
	}
	return f.Err.Error()
}

// Unwrap exposes the underlying *ValidationError.
func (f Failure) Unwrap() error {
	if f.Err == nil {
		return nil
	}
	return f.Err
}

// NewFailure builds a Failure from err. Errors that are not already a
// *ValidationError are classified as fallback.
func NewFailure(err error, fallback ErrorKind) Failure {
	if ve, ok := asValidationError(err); ok {
		return Failure{Err: ve}
	}
	return Failure{Err: NewValidationError(fallback, messageFor(fallback), err)}
}

// Outcome converts a result into the (Success, error) pair adapters usually want.
func Outcome(res ValidationResult) (Success, error) {
	switch r := res.(type) {
	case Success:
		return r, nil
	case Failure:
		return Success{}, r
	default:
		return Success{}, NewFailure(nil, KindClaimValidation)
	}
}

func messageFor(kind ErrorKind) string {
	for _, s := range []*ValidationError{
		ErrMetadataFetch, ErrKeyNotFound, ErrMalformedToken, ErrUnsupportedAlgorithm,
		ErrSignatureInvalid, ErrTokenExpired, ErrTokenNotYetValid, ErrInvalidIssuer,
		ErrMissingAudience, ErrInvalidAudience, ErrInvalidAppID, ErrClaimValidation,
	} {
		if s.Kind == kind {
			return s.Message
		}
	}
	return string(kind)
}
