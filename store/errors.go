package store

import "errors"

var (
	// ErrNotFound is returned when no record exists for the given jti.
	ErrNotFound = errors.New("token record not found")
	// ErrReplayed is returned by Consume when the record exists but was
	// already consumed. The caller treats this as a theft signal.
	ErrReplayed = errors.New("token record already consumed")
	// ErrExpired is returned when the record exists but is past its expiry.
	ErrExpired = errors.New("token record expired")
	// ErrDuplicateJTI is returned by Save on a jti collision. It indicates
	// broken id generation and should never occur in practice.
	ErrDuplicateJTI = errors.New("duplicate jti")
	// ErrCorruptRecord is returned when a stored blob cannot be decoded.
	ErrCorruptRecord = errors.New("token record corrupt")
	// ErrUnavailable wraps infrastructure failures (connection loss,
	// timeouts). It must never be conflated with token invalidity.
	ErrUnavailable = errors.New("token store unavailable")
)
