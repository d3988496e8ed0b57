package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/core"
	"github.com/actionablemessages/go-amtoken-middleware/internal/config"
	"github.com/actionablemessages/go-amtoken-middleware/policy"
)

const testTarget = "https://api.contoso.com"

// stubValidator maps tokens to results. Like core.Core it reports an empty
// token as malformed.
type stubValidator map[string]core.ValidationResult

func (s stubValidator) Validate(_ context.Context, token, target string) core.ValidationResult {
	if token == "" {
		return core.Failure{Err: core.NewValidationError(core.KindMalformedToken, core.ErrMalformedToken.Message, core.ErrTokenMissing)}
	}
	if target != testTarget {
		return core.NewFailure(nil, core.KindInvalidAudience)
	}
	if res, ok := s[token]; ok {
		return res
	}
	return core.NewFailure(nil, core.KindSignatureInvalid)
}

func newTestRouter(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()

	zc, logs := observer.New(zap.DebugLevel)
	logger := zap.New(zc)

	auth, err := amtokenmiddleware.New(
		amtokenmiddleware.WithValidator(stubValidator{
			"contoso-token":   core.Success{Sender: "lob@Contoso.com", ActionPerformer: "alice@contoso.com"},
			"fabrikam-token":  core.Success{Sender: "lob@fabrikam.com", ActionPerformer: "alice@contoso.com"},
			"subdomain-token": core.Success{Sender: "lob@mail.contoso.com", ActionPerformer: "alice@contoso.com"},
			"expired-token":   core.NewFailure(nil, core.KindTokenExpired),
			"wrong-app-token": core.NewFailure(nil, core.KindInvalidAppID),
		}),
		amtokenmiddleware.WithTarget(testTarget),
	)
	require.NoError(t, err)

	return newServer(logger, []string{"contoso.com"}).routes(auth, nil), logs
}

func TestExpenseEndpoint(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		token      string
		wantStatus int
		wantError  string
		wantSender string
	}{
		{
			name:       "it accepts a sender from an allowed domain",
			token:      "contoso-token",
			wantStatus: http.StatusOK,
			wantSender: "lob@Contoso.com",
		},
		{
			name:       "it rejects a sender from another domain",
			token:      "fabrikam-token",
			wantStatus: http.StatusForbidden,
			wantError:  "access_denied",
		},
		{
			name:       "it does not treat a subdomain as the allowed domain",
			token:      "subdomain-token",
			wantStatus: http.StatusForbidden,
			wantError:  "access_denied",
		},
		{
			name:       "it rejects a request without token",
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_request",
		},
		{
			name:       "it rejects an expired token",
			token:      "expired-token",
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_token",
		},
		{
			name:       "it forbids a token for another application",
			token:      "wrong-app-token",
			wantStatus: http.StatusForbidden,
			wantError:  "insufficient_scope",
		},
		{
			name:       "it only routes POST",
			method:     http.MethodGet,
			token:      "contoso-token",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newTestRouter(t)

			method := tc.method
			if method == "" {
				method = http.MethodPost
			}
			req := httptest.NewRequest(method, "/api/expense", strings.NewReader(`{"id":1234}`))
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				var body amtokenmiddleware.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.wantError, body.Error)
			}
			if tc.wantSender != "" {
				var body expenseResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.wantSender, body.Sender)
				assert.Equal(t, "alice@contoso.com", body.ActionPerformer)
				assert.Equal(t, rec.Header().Get(requestIDHeader), body.RequestID)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router, logs := newTestRouter(t)

	t.Run("it generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("it keeps a caller id", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, id)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, id, rec.Header().Get(requestIDHeader))
		entries := logs.FilterMessage("request completed").FilterField(zap.String("request_id", id)).All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	})

	t.Run("it replaces a malformed caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, "<script>")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.NotEqual(t, "<script>", rec.Header().Get(requestIDHeader))
	})
}

func TestSenderAllowed(t *testing.T) {
	s := newServer(zap.NewNop(), []string{"Contoso.com", "fabrikam.com"})

	testCases := []struct {
		sender string
		want   bool
	}{
		{sender: "lob@contoso.com", want: true},
		{sender: "LOB@CONTOSO.COM", want: true},
		{sender: "lob@fabrikam.com", want: true},
		{sender: "lob@contoso.com.evil.com", want: false},
		{sender: "contoso.com", want: false},
		{sender: "@contoso.com", want: false},
		{sender: "lob@", want: false},
		{sender: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.sender, func(t *testing.T) {
			assert.Equal(t, tc.want, s.senderAllowed(tc.sender))
		})
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second},
		Token: config.TokenConfig{
			Target:               testTarget,
			DiscoveryURL:         policy.DefaultDiscoveryURL,
			Issuer:               policy.DefaultIssuer,
			AppID:                policy.DefaultAppID,
			ClockSkew:            30 * time.Second,
			CacheTTL:             time.Minute,
			FetchRetries:         1,
			AllowedSenderDomains: []string{"contoso.com"},
		},
		Observability: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
	}
}

func TestNewApp(t *testing.T) {
	t.Run("it serves metrics and rejects missing tokens without network access", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		handler, cleanup, err := newApp(testConfig(), zap.NewNop(), registry)
		require.NoError(t, err)
		defer cleanup()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/expense", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		var body amtokenmiddleware.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "invalid_request", body.Error)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "amtoken_validations_total")
	})

	t.Run("it skips validation of preflight requests", func(t *testing.T) {
		handler, cleanup, err := newApp(testConfig(), zap.NewNop(), nil)
		require.NoError(t, err)
		defer cleanup()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/expense", nil))
		assert.NotEqual(t, http.StatusUnauthorized, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("it resolves the target from the request", func(t *testing.T) {
		cfg := testConfig()
		cfg.Token.Target = ""
		cfg.Token.TargetFromRequest = true
		cfg.Token.TrustProxyHeaders = true

		handler, cleanup, err := newApp(cfg, zap.NewNop(), nil)
		require.NoError(t, err)
		defer cleanup()

		req := httptest.NewRequest(http.MethodPost, "/api/expense", nil)
		req.Header.Set("X-Forwarded-Host", "api.contoso.com:bad/host")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("it uses a redis key cache", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.Redis.Addr = mr.Addr()
		cfg.Redis.KeyPrefix = "test:"

		handler, cleanup, err := newApp(cfg, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.NotNil(t, handler)
		cleanup()
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.ObservabilityConfig{LogLevel: "warn", LogFormat: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = newLogger(config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"})
	assert.Error(t, err)
}
