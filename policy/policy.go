package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

// Trusted values of the Outlook actionable messages identity provider.
const (
	DefaultIssuer       = "https://substrate.office.com/sts/"
	DefaultAppID        = "48af08dc-f6d2-435f-b2a7-069abd99c086"
	DefaultDiscoveryURL = "https://substrate.office.com/sts/common/.well-known/openid-configuration"
)

// Private claim names.
const (
	ClaimAppID  = "appid"
	ClaimSender = "sender"
)

// AudienceMatch selects how the token audience is compared to the target.
type AudienceMatch int

const (
	// AudienceMatchCaseInsensitive compares with strings.EqualFold.
	AudienceMatchCaseInsensitive AudienceMatch = iota
	// AudienceMatchExact requires byte-for-byte equality.
	AudienceMatchExact
)

func (m AudienceMatch) String() string {
	switch m {
	case AudienceMatchCaseInsensitive:
		return "case-insensitive"
	case AudienceMatchExact:
		return "exact"
	default:
		return fmt.Sprintf("AudienceMatch(%d)", int(m))
	}
}

// Policy applies the fixed claim checks to a verified ClaimSet.
// It is immutable and safe for concurrent use.
type Policy struct {
	issuer        string
	appID         string
	audienceMatch AudienceMatch
}

// New returns a Policy trusting DefaultIssuer and DefaultAppID unless
// overridden.
func New(opts ...Option) (*Policy, error) {
	p := &Policy{
		issuer:        DefaultIssuer,
		appID:         DefaultAppID,
		audienceMatch: AudienceMatchCaseInsensitive,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return p, nil
}

// Evaluate checks, in order, the issuer, the audience against target and the
// application id, then extracts the sender and the action performer (sub).
// The first failing check determines the error kind.
func (p *Policy) Evaluate(claims *core.ClaimSet, target string) (core.Success, error) {
	if claims == nil {
		return core.Success{}, claimError(errors.New("no claims to evaluate"))
	}

	if claims.Issuer == "" {
		return core.Success{}, claimError(errors.New("claim iss is missing"))
	}
	if !strings.EqualFold(claims.Issuer, p.issuer) {
		return core.Success{}, core.NewValidationError(
			core.KindInvalidIssuer,
			core.ErrInvalidIssuer.Message,
			fmt.Errorf("issuer %q is not trusted", claims.Issuer),
		)
	}

	if len(claims.Audience) != 1 {
		return core.Success{}, core.NewValidationError(
			core.KindMissingAudience,
			core.ErrMissingAudience.Message,
			fmt.Errorf("token has %d audiences, expected exactly 1", len(claims.Audience)),
		)
	}
	if !p.audienceMatches(claims.Audience[0], target) {
		return core.Success{}, core.NewValidationError(
			core.KindInvalidAudience,
			core.ErrInvalidAudience.Message,
			fmt.Errorf("audience %q does not match %q", claims.Audience[0], target),
		)
	}

	appID, ok, err := claims.StringClaim(ClaimAppID)
	if err != nil {
		return core.Success{}, claimError(err)
	}
	if !ok {
		return core.Success{}, claimError(errors.New("claim appid is missing"))
	}
	if !strings.EqualFold(appID, p.appID) {
		return core.Success{}, core.NewValidationError(
			core.KindInvalidAppID,
			core.ErrInvalidAppID.Message,
			fmt.Errorf("appid %q is not trusted", appID),
		)
	}

	sender, _, err := claims.StringClaim(ClaimSender)
	if err != nil {
		return core.Success{}, claimError(err)
	}

	return core.Success{Sender: sender, ActionPerformer: claims.Subject}, nil
}

func (p *Policy) audienceMatches(audience, target string) bool {
	if p.audienceMatch == AudienceMatchExact {
		return audience == target
	}
	return strings.EqualFold(audience, target)
}

func claimError(err error) error {
	return core.NewValidationError(core.KindClaimValidation, core.ErrClaimValidation.Message, err)
}
