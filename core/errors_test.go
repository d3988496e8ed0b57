package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	details := errors.New("exp not satisfied")
	err := NewValidationError(KindTokenExpired, "token is expired", details)

	t.Run("it formats the message with details", func(t *testing.T) {
		assert.Equal(t, "token is expired: exp not satisfied", err.Error())
		assert.Equal(t, "token is expired", NewValidationError(KindTokenExpired, "token is expired", nil).Error())
	})

	t.Run("it matches ErrTokenInvalid and its own kind", func(t *testing.T) {
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.NotErrorIs(t, err, ErrTokenNotYetValid)
		assert.ErrorIs(t, err, details)
	})

	t.Run("it matches through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", err)
		assert.ErrorIs(t, wrapped, ErrTokenExpired)
		assert.Equal(t, KindTokenExpired, KindOf(wrapped))
	})

	t.Run("KindOf returns empty for plain errors", func(t *testing.T) {
		assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
		assert.Equal(t, ErrorKind(""), KindOf(nil))
	})
}

func TestErrorKind_Category(t *testing.T) {
	testCases := []struct {
		kind     ErrorKind
		expected Category
	}{
		{KindMetadataFetch, CategoryInfrastructure},
		{KindKeyNotFound, CategoryInfrastructure},
		{KindMalformedToken, CategoryToken},
		{KindUnsupportedAlgorithm, CategoryToken},
		{KindSignatureInvalid, CategoryToken},
		{KindTokenExpired, CategoryToken},
		{KindTokenNotYetValid, CategoryToken},
		{KindInvalidIssuer, CategoryPolicy},
		{KindMissingAudience, CategoryPolicy},
		{KindInvalidAudience, CategoryPolicy},
		{KindInvalidAppID, CategoryPolicy},
		{KindClaimValidation, CategoryPolicy},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.Category())
		})
	}
}

func TestFailure(t *testing.T) {
	t.Run("NewFailure keeps an existing validation error", func(t *testing.T) {
		f := NewFailure(fmt.Errorf("wrap: %w", ErrInvalidIssuer), KindClaimValidation)
		assert.Equal(t, KindInvalidIssuer, f.Kind())
	})

	t.Run("NewFailure uses the fallback for plain errors", func(t *testing.T) {
		f := NewFailure(errors.New("nil pointer"), KindClaimValidation)
		assert.Equal(t, KindClaimValidation, f.Kind())
		assert.Equal(t, "claims could not be validated: nil pointer", f.Error())
	})

	t.Run("Outcome splits the result", func(t *testing.T) {
		s, err := Outcome(Success{Sender: "a", ActionPerformer: "b"})
		assert.NoError(t, err)
		assert.Equal(t, "a", s.Sender)

		_, err = Outcome(Failure{Err: ErrMissingAudience})
		assert.ErrorIs(t, err, ErrMissingAudience)
	})
}

func TestClaimSet_StringClaim(t *testing.T) {
	claims := &ClaimSet{Private: map[string]any{
		"sender": "lob@example.com",
		"appid":  42.0,
		"empty":  nil,
	}}

	v, ok, err := claims.StringClaim("sender")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "lob@example.com", v)

	_, ok, err = claims.StringClaim("missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = claims.StringClaim("empty")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = claims.StringClaim("appid")
	assert.True(t, ok)
	assert.ErrorContains(t, err, `claim "appid" is float64, not a string`)
}
