package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

// testIDP is a TLS identity provider serving a discovery document at
// /.well-known/openid-configuration and a key set at /keys.
type testIDP struct {
	server *httptest.Server

	mu           sync.Mutex
	keys         jwk.Set
	rawKeys      string
	cacheControl string
	keysStatus   int
	discStatus   int

	discoveryCalls int32
	jwksCalls      int32
}

func newTestIDP(t *testing.T, keys ...jwk.Key) *testIDP {
	t.Helper()

	idp := &testIDP{keysStatus: http.StatusOK, discStatus: http.StatusOK}
	idp.setKeys(t, keys...)

	idp.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idp.mu.Lock()
		defer idp.mu.Unlock()

		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			atomic.AddInt32(&idp.discoveryCalls, 1)
			w.WriteHeader(idp.discStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"issuer":   "https://issuer.example.com/",
				"jwks_uri": idp.server.URL + "/keys",
			})
		case "/keys":
			atomic.AddInt32(&idp.jwksCalls, 1)
			if idp.cacheControl != "" {
				w.Header().Set("Cache-Control", idp.cacheControl)
			}
			w.WriteHeader(idp.keysStatus)
			if idp.rawKeys != "" {
				_, _ = w.Write([]byte(idp.rawKeys))
				return
			}
			_ = json.NewEncoder(w).Encode(idp.keys)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(idp.server.Close)

	return idp
}

func (i *testIDP) discoveryURL() string {
	return i.server.URL + "/.well-known/openid-configuration"
}

func (i *testIDP) jwksURL() string {
	return i.server.URL + "/keys"
}

func (i *testIDP) setKeys(t *testing.T, keys ...jwk.Key) {
	t.Helper()

	set := jwk.NewSet()
	for _, k := range keys {
		require.NoError(t, set.AddKey(k))
	}

	i.mu.Lock()
	i.keys = set
	i.mu.Unlock()
}

func (i *testIDP) set(fn func(i *testIDP)) {
	i.mu.Lock()
	fn(i)
	i.mu.Unlock()
}

func (i *testIDP) calls() (discovery, keys int32) {
	return atomic.LoadInt32(&i.discoveryCalls), atomic.LoadInt32(&i.jwksCalls)
}

// rsaPublicKey generates an RSA public JWK with the given kid and, if not
// empty, alg.
func rsaPublicKey(t *testing.T, kid string, alg jwa.SignatureAlgorithm) jwk.Key {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(&privateKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	if alg != "" {
		require.NoError(t, key.Set(jwk.AlgorithmKey, alg))
	}

	return key
}

func ecPublicKey(t *testing.T, kid string) jwk.Key {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := jwk.FromRaw(&privateKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))

	return key
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int
	gauges   map[string]float64
}

func (m *recordingMetrics) IncCounter(name string, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int{}
	}
	m.counters[name+"|"+tags["document"]+"|"+tags["result"]]++
}

func (m *recordingMetrics) ObserveHistogram(string, float64, map[string]string) {}

func (m *recordingMetrics) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = map[string]float64{}
	}
	m.gauges[name+"|"+tags["jwks_uri"]] = value
}

func (m *recordingMetrics) gauge(name, jwksURI string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.gauges[name+"|"+jwksURI]
	return v, ok
}

func (m *recordingMetrics) count(name, document, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name+"|"+document+"|"+result]
}
