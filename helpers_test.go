package amtokenmiddleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/actionablemessages/go-amtoken-middleware/policy"
)

const (
	testTarget = "https://api.example.com"
	testKid    = "kid-1"
)

// identityProvider is a TLS server publishing a discovery document and the
// public half of its signing key.
type identityProvider struct {
	server     *httptest.Server
	signingKey *rsa.PrivateKey

	discoveryCalls atomic.Int32
	jwksCalls      atomic.Int32
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	public, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, testKid))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256))
	require.NoError(t, public.Set(jwk.KeyUsageKey, jwk.ForSignature))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	idp := &identityProvider{signingKey: key}
	idp.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			idp.discoveryCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"issuer":   policy.DefaultIssuer,
				"jwks_uri": idp.server.URL + "/keys",
			})
		case "/keys":
			idp.jwksCalls.Add(1)
			_ = json.NewEncoder(w).Encode(set)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(idp.server.Close)

	return idp
}

func (i *identityProvider) discoveryURL() string {
	return i.server.URL + "/.well-known/openid-configuration"
}

// pipelineConfig points a PipelineConfig at the identity provider.
func (i *identityProvider) pipelineConfig() PipelineConfig {
	return PipelineConfig{
		DiscoveryURL: i.discoveryURL(),
		HTTPClient:   i.server.Client(),
	}
}

func (i *identityProvider) newPipeline(t *testing.T) *Pipeline {
	t.Helper()

	pipeline, err := NewPipeline(i.pipelineConfig())
	require.NoError(t, err)
	return pipeline
}

func validClaims() map[string]any {
	now := time.Now()
	return map[string]any{
		jwt.IssuerKey:      policy.DefaultIssuer,
		jwt.SubjectKey:     "alice@example.com",
		jwt.AudienceKey:    []string{testTarget},
		jwt.ExpirationKey:  now.Add(time.Hour),
		jwt.NotBeforeKey:   now.Add(-time.Minute),
		jwt.IssuedAtKey:    now.Add(-time.Minute),
		policy.ClaimAppID:  policy.DefaultAppID,
		policy.ClaimSender: "lob@example.com",
	}
}

// mint signs claims with the identity provider's key. A nil value in
// overrides removes the claim.
func (i *identityProvider) mint(t *testing.T, overrides map[string]any) string {
	t.Helper()
	return signWith(t, jwa.RS256, i.signingKey, testKid, overrides)
}

func signWith(t *testing.T, alg jwa.SignatureAlgorithm, key any, kid string, overrides map[string]any) string {
	t.Helper()

	claims := validClaims()
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	token := jwt.New()
	for k, v := range claims {
		require.NoError(t, token.Set(k, v))
	}

	headers := jws.NewHeaders()
	require.NoError(t, headers.Set(jws.KeyIDKey, kid))

	signed, err := jwt.Sign(token, jwt.WithKey(alg, key, jws.WithProtectedHeaders(headers)))
	require.NoError(t, err)
	return string(signed)
}
