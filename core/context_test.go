package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessContext(t *testing.T) {
	t.Run("it returns ErrSuccessNotFound on an empty context", func(t *testing.T) {
		_, err := GetSuccess(context.Background())
		assert.ErrorIs(t, err, ErrSuccessNotFound)
		assert.False(t, HasSuccess(context.Background()))
	})

	t.Run("it round-trips the stored result", func(t *testing.T) {
		want := Success{Sender: "lob@example.com", ActionPerformer: "alice@example.com"}
		ctx := SetSuccess(context.Background(), want)

		got, err := GetSuccess(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, HasSuccess(ctx))
	})
}
