package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/talatkuyuk/authtokens/store"
	"github.com/talatkuyuk/authtokens/token"
)

const pgUniqueViolation = "23505"

// DBTX is the subset of database/sql used by the store, satisfied by both
// *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the token store contract over PostgreSQL.
type Store struct {
	db DBTX
}

// New constructs a store bound to the given DBTX.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects to the DSN via the pgx stdlib driver, applies migrations,
// and returns a ready store together with the underlying handle.
func Open(ctx context.Context, dsn string) (*Store, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return New(db), db, nil
}

// Save inserts a new record. The ttl parameter is unused here: expiry is
// carried by the record itself and enforced on lookup plus the reaper.
func (s *Store) Save(ctx context.Context, rec *store.Record, ttl time.Duration) error {
	query := `
		INSERT INTO token_records (jti, subject, family, kind, blacklisted, expires_at, created_at, user_agent_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.JTI,
		rec.Subject,
		rec.Family,
		int16(rec.Kind),
		rec.Blacklisted,
		time.Unix(rec.ExpiresAt, 0).UTC(),
		time.Unix(rec.CreatedAt, 0).UTC(),
		rec.UserAgentHash[:],
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrDuplicateJTI
		}
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// FindByJTI returns the stored record, including blacklisted ones. Expired
// records report [store.ErrNotFound].
func (s *Store) FindByJTI(ctx context.Context, jti string) (*store.Record, error) {
	query := `
		SELECT subject, family, kind, blacklisted, expires_at, created_at, user_agent_hash
		FROM token_records
		WHERE jti = $1
	`
	rec, err := s.scanRecord(jti, s.db.QueryRowContext(ctx, query, jti))
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= rec.ExpiresAt {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// Consume atomically blacklists a live refresh record. The guard on the
// blacklist flag and expiry makes the update the single decision point; the
// follow-up classification query only names the reason after losing.
func (s *Store) Consume(ctx context.Context, jti string) (*store.Record, error) {
	query := `
		UPDATE token_records
		SET blacklisted = true
		WHERE jti = $1 AND NOT blacklisted AND expires_at > now()
		RETURNING subject, family, kind, false, expires_at, created_at, user_agent_hash
	`
	rec, err := s.scanRecord(jti, s.db.QueryRowContext(ctx, query, jti))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return nil, s.classifyMiss(ctx, jti, true)
}

// Redeem atomically deletes a live action-token record.
func (s *Store) Redeem(ctx context.Context, jti string) (*store.Record, error) {
	query := `
		DELETE FROM token_records
		WHERE jti = $1 AND expires_at > now()
		RETURNING subject, family, kind, blacklisted, expires_at, created_at, user_agent_hash
	`
	rec, err := s.scanRecord(jti, s.db.QueryRowContext(ctx, query, jti))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return nil, s.classifyMiss(ctx, jti, false)
}

// classifyMiss names the reason a conditional consume or redeem matched no
// row: absent, expired, or (for consume) already blacklisted.
func (s *Store) classifyMiss(ctx context.Context, jti string, reportReplay bool) error {
	var blacklisted bool
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT blacklisted, expires_at FROM token_records WHERE jti = $1`, jti,
	).Scan(&blacklisted, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if reportReplay && blacklisted {
		return store.ErrReplayed
	}
	if time.Now().Unix() >= expiresAt.Unix() {
		return store.ErrExpired
	}
	return store.ErrNotFound
}

// RemoveFamily deletes every record sharing the family, blacklisted or not.
func (s *Store) RemoveFamily(ctx context.Context, family string) error {
	if family == "" {
		return nil
	}
	return s.remove(ctx, `DELETE FROM token_records WHERE family = $1`, family)
}

// RemoveSubject deletes every record of the subject across all families and
// kinds.
func (s *Store) RemoveSubject(ctx context.Context, subject string) error {
	return s.remove(ctx, `DELETE FROM token_records WHERE subject = $1`, subject)
}

// RemoveKind deletes every record of the subject with the given kind.
func (s *Store) RemoveKind(ctx context.Context, subject string, kind token.Kind) error {
	return s.remove(ctx, `DELETE FROM token_records WHERE subject = $1 AND kind = $2`, subject, int16(kind))
}

func (s *Store) remove(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) scanRecord(jti string, row *sql.Row) (*store.Record, error) {
	var (
		kind      int16
		expiresAt time.Time
		createdAt time.Time
		uaHash    []byte
	)
	rec := &store.Record{JTI: jti}
	err := row.Scan(&rec.Subject, &rec.Family, &kind, &rec.Blacklisted, &expiresAt, &createdAt, &uaHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	rec.Kind = token.Kind(kind)
	if !rec.Kind.Persisted() {
		return nil, store.ErrCorruptRecord
	}
	rec.ExpiresAt = expiresAt.Unix()
	rec.CreatedAt = createdAt.Unix()
	if len(uaHash) == len(rec.UserAgentHash) {
		copy(rec.UserAgentHash[:], uaHash)
	}
	return rec, nil
}
