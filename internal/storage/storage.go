package storage

import "time"

type ExpiryStatus int

const (
	// ExpNotFound means that the key does not exist
	ExpNotFound ExpiryStatus = -2
	// ExpNoTimeout means that the key exists, but it does not have a TTL
	ExpNoTimeout ExpiryStatus = -1
	// ExpActive means that the key has an active lifetime
	ExpActive ExpiryStatus = 1
)

// SetOptions control the conditional and expiry behavior of Set.
// ExpireAt is an absolute deadline so that EX, PX, EXAT and PXAT all reduce
// to the same representation.
type SetOptions struct {
	ExpireAt int64 // unix nanoseconds, 0 means no expiry
	KeepTTL  bool  // retain the existing TTL (ignore ExpireAt)
	NX       bool  // only set if the key does not exist
	XX       bool  // only set if the key already exists
}

// Storage is a common interface for working with key-value storages.
// An entry whose deadline has passed is logically absent from every
// operation, whether or not it has been physically removed yet.
type Storage interface {
	// Get returns the value and true if the key is found. Otherwise, "", false
	Get(key string) (string, bool)

	// Set writes the value based on the options. Returns true if recording has been performed
	Set(key, value string, options SetOptions) bool

	// Delete deletes the key. Returns true if the key existed and was deleted
	Delete(key string) bool

	// Exists reports whether the key is present and not expired
	Exists(key string) bool

	// Expiry returns the remaining lifetime and status as ExpiryStatus
	Expiry(key string) (time.Duration, ExpiryStatus)

	// Persist removes the expiration date of the key, making it eternal.
	// Returns 1 if successful, 0 if the key was not found or had no TTL
	Persist(key string) int64

	// Keys returns the live keys matching a glob pattern
	Keys(pattern string) []string

	// Len returns the number of live keys
	Len() int

	// DeleteExpired samples up to limit keys with a TTL and deletes the
	// expired ones. Returns the expired/checked ratio
	DeleteExpired(limit int) float64
}
