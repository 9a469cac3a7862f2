package authtokens

import "errors"

var (
	// ErrTokenInvalid is an exported constant or variable used by the token engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the token engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenReuse is an exported constant or variable used by the token engine.
	ErrTokenReuse = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable is an exported constant or variable used by the token engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrDuplicateJTI is an exported constant or variable used by the token engine.
	ErrDuplicateJTI = errors.New("duplicate jti")
	// ErrSessionNotFound is an exported constant or variable used by the token engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRotateRateLimited is an exported constant or variable used by the token engine.
	ErrRotateRateLimited = errors.New("rotation rate limited")
	// ErrIssueRateLimited is an exported constant or variable used by the token engine.
	ErrIssueRateLimited = errors.New("action token issuance rate limited")
	// ErrNotActionKind is an exported constant or variable used by the token engine.
	ErrNotActionKind = errors.New("kind is not an action token kind")
)
