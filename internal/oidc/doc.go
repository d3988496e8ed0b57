/*
Package oidc resolves an identity provider's discovery document.

The provider publishes a JSON document at a fixed, trusted URL, for example

	https://substrate.office.com/sts/common/.well-known/openid-configuration

which names, among other things, the URL of its signing-key set:

	{
	    "issuer": "https://substrate.office.com/sts/",
	    "jwks_uri": "https://substrate.office.com/sts/common/discovery/keys",
	    "id_token_signing_alg_values_supported": ["RS256"]
	}

# Usage

	endpoints, err := oidc.GetWellKnownEndpoints(ctx, client, discoveryURL, fetch.NoRetry)
	if err != nil {
	    // network error, non-200 status, redirect, malformed JSON,
	    // missing or non-https jwks_uri
	}
	keysURL := endpoints.JWKSURI

The discovery URL itself is configured, not derived from the token, so the
issuer field is returned for information only and is not compared here.

# Transport

Requests go through internal/fetch: https only, redirects are never
followed, bodies are capped at 1 MiB and transient failures can be retried
with a bounded RetryPolicy.
*/
package oidc
