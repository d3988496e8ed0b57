package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockVerifier struct {
	verifyFunc func(ctx context.Context, token string) (*ClaimSet, error)
	calls      int
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*ClaimSet, error) {
	m.calls++
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

type mockPolicy struct {
	evaluateFunc func(claims *ClaimSet, target string) (Success, error)
}

func (m *mockPolicy) Evaluate(claims *ClaimSet, target string) (Success, error) {
	return m.evaluateFunc(claims, target)
}

// mockLogger is a mock implementation of Logger for testing.
type mockLogger struct {
	debugCalls []logCall
	infoCalls  []logCall
	warnCalls  []logCall
	errorCalls []logCall
}

type logCall struct {
	msg  string
	args []any
}

func (m *mockLogger) Debug(msg string, args ...any) {
	m.debugCalls = append(m.debugCalls, logCall{msg, args})
}

func (m *mockLogger) Info(msg string, args ...any) {
	m.infoCalls = append(m.infoCalls, logCall{msg, args})
}

func (m *mockLogger) Warn(msg string, args ...any) {
	m.warnCalls = append(m.warnCalls, logCall{msg, args})
}

func (m *mockLogger) Error(msg string, args ...any) {
	m.errorCalls = append(m.errorCalls, logCall{msg, args})
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string][]map[string]string
}

func (m *recordingMetrics) IncCounter(name string, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string][]map[string]string{}
	}
	m.counters[name] = append(m.counters[name], tags)
}
func (m *recordingMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (m *recordingMetrics) SetGauge(string, float64, map[string]string)         {}

func okVerifier() *mockVerifier {
	return &mockVerifier{
		verifyFunc: func(context.Context, string) (*ClaimSet, error) {
			return &ClaimSet{Subject: "alice@example.com"}, nil
		},
	}
}

func okPolicy() *mockPolicy {
	return &mockPolicy{
		evaluateFunc: func(claims *ClaimSet, _ string) (Success, error) {
			return Success{Sender: "lob@example.com", ActionPerformer: claims.Subject}, nil
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("it creates a core with the required options", func(t *testing.T) {
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(okPolicy()))
		require.NoError(t, err)
		assert.NotNil(t, c)
		assert.IsType(t, NoopMetrics{}, c.metrics)
		assert.IsType(t, NoopTracer{}, c.tracer)
	})

	t.Run("it fails without a verifier", func(t *testing.T) {
		_, err := New(WithClaimPolicy(okPolicy()))
		assert.ErrorContains(t, err, "verifier is required")
	})

	t.Run("it fails without a claim policy", func(t *testing.T) {
		_, err := New(WithVerifier(okVerifier()))
		assert.ErrorContains(t, err, "claim policy is required")
	})

	t.Run("it rejects nil options", func(t *testing.T) {
		for _, opt := range []Option{WithVerifier(nil), WithClaimPolicy(nil), WithLogger(nil), WithMetrics(nil), WithTracer(nil)} {
			_, err := New(opt)
			assert.Error(t, err)
		}
	})
}

func TestCore_Validate(t *testing.T) {
	t.Run("it returns success with the extracted identities", func(t *testing.T) {
		logger := &mockLogger{}
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(okPolicy()), WithLogger(logger))
		require.NoError(t, err)

		res := c.Validate(context.Background(), "a.b.c", "https://api.example.com")

		assert.Equal(t, Success{Sender: "lob@example.com", ActionPerformer: "alice@example.com"}, res)
		assert.Len(t, logger.debugCalls, 1)
		assert.Empty(t, logger.warnCalls)
	})

	t.Run("it rejects an empty token without calling the verifier", func(t *testing.T) {
		v := okVerifier()
		c, err := New(WithVerifier(v), WithClaimPolicy(okPolicy()))
		require.NoError(t, err)

		res := c.Validate(context.Background(), "", "https://api.example.com")

		f, ok := res.(Failure)
		require.True(t, ok)
		assert.Equal(t, KindMalformedToken, f.Kind())
		assert.ErrorIs(t, f, ErrTokenMissing)
		assert.Zero(t, v.calls)
	})

	t.Run("it keeps the kind of a verifier failure", func(t *testing.T) {
		v := &mockVerifier{verifyFunc: func(context.Context, string) (*ClaimSet, error) {
			return nil, NewValidationError(KindTokenExpired, "token is expired", errors.New("exp not satisfied"))
		}}
		policyCalled := false
		p := &mockPolicy{evaluateFunc: func(*ClaimSet, string) (Success, error) {
			policyCalled = true
			return Success{}, nil
		}}
		c, err := New(WithVerifier(v), WithClaimPolicy(p))
		require.NoError(t, err)

		res := c.Validate(context.Background(), "a.b.c", "t")

		f, ok := res.(Failure)
		require.True(t, ok)
		assert.Equal(t, KindTokenExpired, f.Kind())
		assert.ErrorIs(t, f, ErrTokenExpired)
		assert.False(t, policyCalled)
	})

	t.Run("it classifies an unknown verifier error as an invalid signature", func(t *testing.T) {
		v := &mockVerifier{verifyFunc: func(context.Context, string) (*ClaimSet, error) {
			return nil, errors.New("boom")
		}}
		c, err := New(WithVerifier(v), WithClaimPolicy(okPolicy()))
		require.NoError(t, err)

		f, ok := c.Validate(context.Background(), "a.b.c", "t").(Failure)
		require.True(t, ok)
		assert.Equal(t, KindSignatureInvalid, f.Kind())
	})

	t.Run("it classifies an unknown policy error as a claim validation error", func(t *testing.T) {
		p := &mockPolicy{evaluateFunc: func(*ClaimSet, string) (Success, error) {
			return Success{}, errors.New("claim blew up")
		}}
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(p))
		require.NoError(t, err)

		f, ok := c.Validate(context.Background(), "a.b.c", "t").(Failure)
		require.True(t, ok)
		assert.Equal(t, KindClaimValidation, f.Kind())
		assert.ErrorContains(t, f, "claim blew up")
	})

	t.Run("it recovers a panic in the policy as a claim validation error", func(t *testing.T) {
		p := &mockPolicy{evaluateFunc: func(*ClaimSet, string) (Success, error) {
			var m map[string]string
			m["x"] = "y"
			return Success{}, nil
		}}
		logger := &mockLogger{}
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(p), WithLogger(logger))
		require.NoError(t, err)

		f, ok := c.Validate(context.Background(), "a.b.c", "t").(Failure)
		require.True(t, ok)
		assert.Equal(t, KindClaimValidation, f.Kind())
		assert.Len(t, logger.warnCalls, 1)
	})

	t.Run("it records a counter per outcome", func(t *testing.T) {
		metrics := &recordingMetrics{}
		p := &mockPolicy{evaluateFunc: func(*ClaimSet, string) (Success, error) {
			return Success{}, ErrInvalidAppID
		}}
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(p), WithMetrics(metrics))
		require.NoError(t, err)

		c.Validate(context.Background(), "a.b.c", "t")

		require.Len(t, metrics.counters[MetricValidationsTotal], 1)
		assert.Equal(t, map[string]string{
			"result":   "failure",
			"kind":     string(KindInvalidAppID),
			"category": string(CategoryPolicy),
		}, metrics.counters[MetricValidationsTotal][0])
	})

	t.Run("it returns the same result when called twice", func(t *testing.T) {
		c, err := New(WithVerifier(okVerifier()), WithClaimPolicy(okPolicy()))
		require.NoError(t, err)

		first := c.Validate(context.Background(), "a.b.c", "t")
		second := c.Validate(context.Background(), "a.b.c", "t")
		assert.Equal(t, first, second)
	})
}
