package core

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	successKey contextKey = iota
)

// SetSuccess stores a successful validation result in the context.
// Adapters call it after validation so handlers can read the identities.
func SetSuccess(ctx context.Context, s Success) context.Context {
	return context.WithValue(ctx, successKey, s)
}

// GetSuccess retrieves the validation result stored by SetSuccess.
//
//	s, err := core.GetSuccess(r.Context())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(s.Sender, s.ActionPerformer)
func GetSuccess(ctx context.Context) (Success, error) {
	s, ok := ctx.Value(successKey).(Success)
	if !ok {
		return Success{}, ErrSuccessNotFound
	}
	return s, nil
}

// HasSuccess checks if a validation result exists in the context.
func HasSuccess(ctx context.Context) bool {
	_, ok := ctx.Value(successKey).(Success)
	return ok
}
