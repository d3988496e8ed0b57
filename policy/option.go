package policy

import (
	"errors"
	"fmt"
)

// Option is how options for the Policy are set up.
type Option func(*Policy) error

// WithIssuer sets the trusted issuer. Compared case-insensitively.
func WithIssuer(issuer string) Option {
	return func(p *Policy) error {
		if issuer == "" {
			return errors.New("issuer cannot be empty")
		}
		p.issuer = issuer
		return nil
	}
}

// WithAppID sets the trusted application id. Compared case-insensitively.
func WithAppID(appID string) Option {
	return func(p *Policy) error {
		if appID == "" {
			return errors.New("app id cannot be empty")
		}
		p.appID = appID
		return nil
	}
}

// WithAudienceMatch selects how the audience is compared to the target.
func WithAudienceMatch(match AudienceMatch) Option {
	return func(p *Policy) error {
		switch match {
		case AudienceMatchCaseInsensitive, AudienceMatchExact:
			p.audienceMatch = match
			return nil
		default:
			return fmt.Errorf("unknown audience match: %s", match)
		}
	}
}
