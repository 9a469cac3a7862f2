// Package pgstore provides a PostgreSQL-backed implementation of the token
// store contract, for deployments that keep session state next to their
// relational data instead of in Redis.
//
// The atomic-consume property is carried by single conditional statements:
// Consume is one UPDATE guarded on the blacklist flag and expiry, Redeem is
// one guarded DELETE, both with RETURNING. Two concurrent calls for the
// same jti therefore resolve to exactly one winner inside the database.
//
// Unlike the Redis store, rows have no native TTL; a [Reaper] sweeps
// expired rows periodically. The sweep is housekeeping only — expiry is
// re-checked on every lookup, so correctness never depends on it.
//
// Schema is managed through embedded goose migrations; see [RunMigrations].
package pgstore
