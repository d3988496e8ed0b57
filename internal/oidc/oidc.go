package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
)

// ErrMissingJWKSURI is returned when the discovery document carries no usable
// jwks_uri.
var ErrMissingJWKSURI = errors.New("discovery document has no jwks_uri")

// WellKnownEndpoints holds the fields of the discovery document that the
// token pipeline uses.
type WellKnownEndpoints struct {
	Issuer                           string   `json:"issuer"`
	JWKSURI                          string   `json:"jwks_uri"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// GetWellKnownEndpoints fetches and parses the discovery document published at
// discoveryURL. The document URL and the jwks_uri it names must both be https.
func GetWellKnownEndpoints(
	ctx context.Context,
	client *http.Client,
	discoveryURL string,
	retry fetch.RetryPolicy,
) (*WellKnownEndpoints, error) {
	resp, err := fetch.Get(ctx, client, discoveryURL, retry)
	if err != nil {
		return nil, fmt.Errorf("could not fetch well-known endpoints from %s: %w", discoveryURL, err)
	}

	return parseWellKnownEndpoints(resp.Body)
}

func parseWellKnownEndpoints(body []byte) (*WellKnownEndpoints, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from well-known endpoints: %w", err)
	}
	if raw == nil {
		return nil, errors.New("well-known endpoints document is not a JSON object")
	}

	var wkEndpoints WellKnownEndpoints
	if err := json.Unmarshal(body, &wkEndpoints); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from well-known endpoints: %w", err)
	}

	if wkEndpoints.JWKSURI == "" {
		return nil, ErrMissingJWKSURI
	}
	if _, err := fetch.RequireHTTPS(wkEndpoints.JWKSURI); err != nil {
		return nil, fmt.Errorf("invalid jwks_uri: %w", err)
	}

	return &wkEndpoints, nil
}
