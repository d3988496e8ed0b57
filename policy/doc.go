/*
Package policy applies the business rules an actionable message token must
satisfy once its signature has been verified.

Checks run in this order and stop at the first failure:

 1. iss equals the trusted issuer, ignoring case (core.KindInvalidIssuer)
 2. aud has exactly one entry (core.KindMissingAudience)
 3. that entry equals the target service URL, ignoring case unless
    AudienceMatchExact is set (core.KindInvalidAudience)
 4. appid equals the trusted application id, ignoring case (core.KindInvalidAppID)

A missing iss or appid, or a sender or appid claim that is not a string, is
reported as core.KindClaimValidation.

On success the sender claim (may be empty) and the sub claim are returned as
core.Success{Sender, ActionPerformer}.

The defaults trust the Outlook actionable messages service:

	p, err := policy.New()                                   // DefaultIssuer, DefaultAppID
	p, err := policy.New(policy.WithAudienceMatch(policy.AudienceMatchExact))
*/
package policy
