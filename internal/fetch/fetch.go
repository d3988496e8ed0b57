// Package fetch performs the outbound HTTPS GETs made against the identity
// provider: TLS only, redirects never followed, bounded body size and an
// optional bounded retry with exponential backoff.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// MaxBodySize limits every response body. Discovery documents and key sets
// are typically a few KB.
const MaxBodySize = 1 << 20

// Default client timeouts.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second
	DefaultTotalTimeout   = 15 * time.Second
)

var (
	// ErrInsecureURL is returned for any URL that is not an absolute https URL.
	ErrInsecureURL = errors.New("url must be an absolute https URL")

	// ErrBodyTooLarge is returned when a response exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("response body exceeds maximum size")
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d, expected 200", e.URL, e.StatusCode)
}

// Response is a fully read 200 response.
type Response struct {
	Body   []byte
	Header http.Header
}

// RetryPolicy bounds retries of transient failures. Attempts counts the
// first try, so the zero value and Attempts == 1 both mean "no retry".
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NoRetry performs a single attempt.
var NoRetry = RetryPolicy{Attempts: 1}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// NewDefaultClient returns a client with connect, TLS handshake, response
// header and overall timeouts, and TLS 1.2 as the minimum version.
func NewDefaultClient() *http.Client {
	return newClient(clientTimeouts{
		connect: DefaultConnectTimeout,
		read:    DefaultReadTimeout,
		total:   DefaultTotalTimeout,
	}, &tls.Config{MinVersion: tls.VersionTLS12})
}

type clientTimeouts struct {
	connect time.Duration
	read    time.Duration
	total   time.Duration
}

func newClient(timeouts clientTimeouts, tlsConfig *tls.Config) *http.Client {
	return &http.Client{
		Timeout: timeouts.total,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeouts.connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   timeouts.connect,
			ResponseHeaderTimeout: timeouts.read,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			TLSClientConfig:       tlsConfig,
		},
	}
}

// RequireHTTPS parses rawURL and checks that it is an absolute https URL.
func RequireHTTPS(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsecureURL, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInsecureURL, rawURL)
	}
	return u, nil
}

// Get fetches rawURL with client, retrying transient failures per retry.
// The client is copied so that redirects can be disabled without touching
// the caller's instance.
func Get(ctx context.Context, client *http.Client, rawURL string, retry RetryPolicy) (*Response, error) {
	u, err := RequireHTTPS(rawURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = NewDefaultClient()
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	for attempt := 1; ; attempt++ {
		resp, err := get(ctx, &c, u.String())
		if err == nil {
			return resp, nil
		}
		if attempt >= retry.Attempts || !retryable(ctx, err) {
			return nil, err
		}

		timer := time.NewTimer(retry.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
}

func get(ctx context.Context, client *http.Client, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return &Response{Body: body, Header: resp.Header}, nil
}

// retryable reports whether err is worth another attempt: transport errors,
// 5xx and 429. A cancelled or expired caller context never is.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}
