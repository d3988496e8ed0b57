/*
Package amtokenmiddleware provides HTTP middleware that validates the bearer
tokens attached to actionable message requests.

An actionable message is an email carrying buttons that call a service
directly (approving an expense report, for example). The mail client sends
the action as an HTTPS request with an "Authorization: Bearer <token>"
header. The token is signed by the identity provider and names two
identities: the sender of the message and the user who performed the action.

The package follows the Core-Adapter pattern: the core package runs the
pipeline and this package is the HTTP transport adapter. Gin is supported in
this package, Echo in framework/echo and gRPC in integrations/grpc.

# Quick Start

	pipeline, err := amtokenmiddleware.NewPipeline(amtokenmiddleware.PipelineConfig{
	    Logger: slog.Default(),
	})
	if err != nil {
	    log.Fatal(err)
	}

	middleware, err := amtokenmiddleware.New(
	    amtokenmiddleware.WithValidator(pipeline),
	    amtokenmiddleware.WithTarget("https://api.example.com"),
	)
	if err != nil {
	    log.Fatal(err)
	}

	http.Handle("/api/expense", middleware.CheckToken(expenseHandler))

The zero PipelineConfig trusts the default actionable message issuer
(policy.DefaultIssuer, policy.DefaultAppID and policy.DefaultDiscoveryURL).

# Pipeline

NewPipeline wires four stages behind a core.Core:

  - jwks.CachingProvider resolves the key set URL from the discovery document
    and caches both the discovery result and the key set (in memory, or in
    Redis with jwks.NewRedisCache to share them between replicas)
  - validator.Validator checks the token structure, the algorithm allow-list,
    the signature and the exp, nbf and iat claims
  - policy.Policy checks iss, aud against the target, and appid, then
    extracts the sender and the subject
  - core.Core turns the outcome into a core.Success or a core.Failure

# Accessing the Result

	func expenseHandler(w http.ResponseWriter, r *http.Request) {
	    s, err := amtokenmiddleware.GetSuccess(r.Context())
	    if err != nil {
	        http.Error(w, "Unauthorized", http.StatusUnauthorized)
	        return
	    }
	    fmt.Fprintf(w, "%s approved a request from %s", s.ActionPerformer, s.Sender)
	}

# Target

The target is the audience the token must be issued for, the https origin of
the service. Use WithTarget for a fixed value or WithTargetFunc to derive it
per request:

	amtokenmiddleware.WithTargetFunc(amtokenmiddleware.TargetFromProxiedRequest(
	    &amtokenmiddleware.TrustedProxyConfig{
	        TrustXForwardedProto: true,
	        TrustXForwardedHost:  true,
	    },
	))

Only trust forwarded headers behind a proxy that overwrites them.

# Error Responses

DefaultErrorHandler writes RFC 6750 style responses. The failure detail is
logged, never returned.

401 Unauthorized (missing token):

	{
	    "error": "invalid_request",
	    "error_description": "Authorization header required"
	}
	WWW-Authenticate: Bearer

401 Unauthorized (token or key failure):

	{
	    "error": "invalid_token",
	    "error_description": "The access token expired",
	    "error_code": "token_expired_error"
	}
	WWW-Authenticate: Bearer error="invalid_token", error_description="The access token expired"

403 Forbidden (issuer, audience, appid or claim failure):

	{
	    "error": "insufficient_scope",
	    "error_description": "The access token audience does not match",
	    "error_code": "invalid_audience_error"
	}

# Logging, Metrics and Tracing

Logger is compatible with *slog.Logger. NewZapLogger, NewZerologLogger and
NewLogrusLogger adapt other loggers. NewPrometheusMetrics and
NewOpenTelemetryTracer plug into PipelineConfig.Metrics and
PipelineConfig.Tracer.
*/
package amtokenmiddleware
