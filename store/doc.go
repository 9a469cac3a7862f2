// Package store persists the engine's outstanding refresh and action token
// records, keyed by jti.
//
// The contract is deliberately narrow: save, lookup, an atomic consume for
// refresh rotation, an atomic redeem for single-use action tokens, and bulk
// removal by family, subject, or subject+kind. The one property every
// implementation must honor is that Consume and Redeem are single
// conditional storage operations — two concurrent calls for the same jti
// must resolve to exactly one winner even when multiple engine instances
// share the store. In-process locking is not enough and is not used.
//
// The Redis implementation in this package encodes records as versioned
// binary blobs with a fixed-offset header so server-side Lua scripts can
// inspect the blacklist flag, expiry, family, and subject without a round
// trip. Consumed refresh records are blacklisted in place and reaped by the
// key's own TTL, so a replayed token remains distinguishable from one that
// never existed until it would have expired anyway.
package store
