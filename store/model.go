package store

import (
	"context"
	"time"

	"github.com/talatkuyuk/authtokens/token"
)

// Record is one outstanding refresh or action token. JTI is the primary
// key; Family groups every refresh token descended from one login and is
// empty for action tokens.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	JTI           string
	Subject       string
	Family        string
	Kind          token.Kind
	Blacklisted   bool
	ExpiresAt     int64
	CreatedAt     int64
	UserAgentHash [32]byte
}

// Store is the persistence contract consumed by the engine. Implementations
// must make Consume and Redeem atomic at the storage layer; see the package
// documentation.
type Store interface {
	// Save persists a new record with the given time to live.
	// Fails with [ErrDuplicateJTI] on collision.
	Save(ctx context.Context, rec *Record, ttl time.Duration) error

	// FindByJTI returns the record for jti, or [ErrNotFound] when absent
	// or past expiry.
	FindByJTI(ctx context.Context, jti string) (*Record, error)

	// Consume atomically marks a live refresh record as blacklisted and
	// returns its prior state. Errors: [ErrNotFound], [ErrReplayed],
	// [ErrExpired]. Exactly one of N concurrent calls for the same jti
	// succeeds.
	Consume(ctx context.Context, jti string) (*Record, error)

	// Redeem atomically deletes a live action-token record and returns it.
	// Errors: [ErrNotFound], [ErrExpired]. A second Redeem for the same
	// jti fails with [ErrNotFound].
	Redeem(ctx context.Context, jti string) (*Record, error)

	// RemoveFamily deletes every record of the family, blacklisted or not.
	// Idempotent.
	RemoveFamily(ctx context.Context, family string) error

	// RemoveSubject deletes every record of the subject across all
	// families and kinds. Idempotent.
	RemoveSubject(ctx context.Context, subject string) error

	// RemoveKind deletes every record of the subject with the given kind.
	// Used to enforce at most one live action token per subject per kind.
	// Idempotent.
	RemoveKind(ctx context.Context, subject string, kind token.Kind) error
}
