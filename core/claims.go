package core

import (
	"fmt"
	"time"
)

// ClaimSet is the verified payload of a token. Registered claims are
// decoded into fields; everything else is kept in Private.
type ClaimSet struct {
	Issuer    string
	Subject   string
	Audience  []string
	Expiry    time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	Private   map[string]any
}

// StringClaim returns the private claim name. The boolean reports whether
// the claim is present; an error is returned if it is present but is not a string.
func (c *ClaimSet) StringClaim(name string) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	raw, ok := c.Private[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("claim %q is %T, not a string", name, raw)
	}
	return s, true, nil
}
