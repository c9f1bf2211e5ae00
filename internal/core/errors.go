package core

import "errors"

var (
	// ErrKeyTooShort rejects encryption keys below the 32-byte minimum.
	ErrKeyTooShort = errors.New("master key must be at least 32 bytes")

	// ErrDecryptionFailed covers wrong keys and tampered ciphertext.
	// Decryption fails closed; partial plaintext is never returned.
	ErrDecryptionFailed = errors.New("decryption failed: invalid key or corrupted data")

	// ErrCacheRejected is the cache admission-control rejection. Non-fatal,
	// callers may proceed without caching.
	ErrCacheRejected = errors.New("cache rejected entry: capacity limit reached")

	// ErrMaxRetries terminates a recovery-wrapped operation after the
	// retry bound is exhausted.
	ErrMaxRetries = errors.New("operation failed after max retries")

	// ErrInvalidInput rejects malformed input at the boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCompletionTimeout reports an outbound completion call that
	// exceeded its deadline.
	ErrCompletionTimeout = errors.New("completion request timed out")
)
