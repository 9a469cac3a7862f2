package internaldefs

import (
	authtokens "github.com/talatkuyuk/authtokens"
)

// CounterDef defines a public type used by authtokens APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authtokens.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token engine.
var CounterDefs = []CounterDef{
	{ID: authtokens.MetricMintSuccess, Name: "authtokens_mint_success_total", Help: "Successful token pair mints."},
	{ID: authtokens.MetricMintFailure, Name: "authtokens_mint_failure_total", Help: "Failed token pair mints."},
	{ID: authtokens.MetricRotateSuccess, Name: "authtokens_rotate_success_total", Help: "Successful refresh rotations."},
	{ID: authtokens.MetricRotateFailure, Name: "authtokens_rotate_failure_total", Help: "Failed refresh rotations."},
	{ID: authtokens.MetricRotateReuseDetected, Name: "authtokens_rotate_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authtokens.MetricRotateExpired, Name: "authtokens_rotate_expired_total", Help: "Rotations rejected for natural expiry."},
	{ID: authtokens.MetricRotateRateLimited, Name: "authtokens_rotate_rate_limited_total", Help: "Rate-limited rotation attempts."},
	{ID: authtokens.MetricFamilyRevoked, Name: "authtokens_family_revoked_total", Help: "Revoked token families."},
	{ID: authtokens.MetricLogout, Name: "authtokens_logout_total", Help: "Single-session logout operations."},
	{ID: authtokens.MetricLogoutAll, Name: "authtokens_logout_all_total", Help: "Logout-all operations."},
	{ID: authtokens.MetricActionIssued, Name: "authtokens_action_issued_total", Help: "Issued action tokens."},
	{ID: authtokens.MetricActionRedeemed, Name: "authtokens_action_redeemed_total", Help: "Redeemed action tokens."},
	{ID: authtokens.MetricActionRedeemFailure, Name: "authtokens_action_redeem_failure_total", Help: "Failed action token redemptions."},
	{ID: authtokens.MetricActionIssueRateLimited, Name: "authtokens_action_issue_rate_limited_total", Help: "Rate-limited action token issuance attempts."},
	{ID: authtokens.MetricUserAgentMismatch, Name: "authtokens_user_agent_mismatch_total", Help: "Detected user-agent mismatches on rotation."},
	{ID: authtokens.MetricStoreUnavailable, Name: "authtokens_store_unavailable_total", Help: "Operations failed by store unavailability."},
}
