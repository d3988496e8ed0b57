/*
Package core provides framework-agnostic validation of actionable message
tokens that can be used across different transport layers (HTTP, gRPC, etc.).

# Architecture

	┌─────────────────────────────────────────────┐
	│         Transport Adapters                  │
	│  (net/http, Gin, Echo, gRPC)                │
	└────────────────┬────────────────────────────┘
	                 │ token, target
	                 ▼
	┌─────────────────────────────────────────────┐
	│          Core (THIS PACKAGE)                │
	│  • Verifier   (structure, alg, signature)   │
	│  • ClaimPolicy (issuer, audience, appid)    │
	│  • Logger / Metrics / Tracer hooks          │
	└────────────────┬────────────────────────────┘
	                 │
	                 ▼
	        Success{Sender, ActionPerformer}
	                 or
	        Failure{*ValidationError}

# Results

Validate never returns an error value. Every outcome is a ValidationResult,
which is either a Success or a Failure:

	switch res := c.Validate(ctx, token, "https://api.contoso.com").(type) {
	case core.Success:
	    approve(res.Sender, res.ActionPerformer)
	case core.Failure:
	    logger.Warn("rejected", "kind", res.Kind(), "error", res)
	}

# Error Kinds

Failures carry a *ValidationError whose Kind is one of the Kind* constants.
Each kind has a sentinel that matches with errors.Is:

	if errors.Is(res.(core.Failure), core.ErrTokenExpired) {
	    // ...
	}

Kinds are grouped by Category: infrastructure (the identity provider could
not be used), token (the token itself was rejected) and policy (the claims
did not satisfy the configured issuer, audience or application id).

# Thread Safety

Core is immutable after New and safe for concurrent use.
*/
package core
