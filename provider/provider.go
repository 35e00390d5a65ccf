// Package provider defines the local byte stores that can back the memory tier.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. They must also be
// in-process and non-blocking: the memory tier is consulted on every request
// before any I/O, so a network-backed store does not belong here (use a
// store.Store for that).
package provider

// Provider is a minimal, bounded, in-process byte store.
// Safe for concurrent use. Eviction shows up as a miss, never as an error.
type Provider interface {
	// Get returns (value, true) on hit; (nil, false) on miss.
	Get(key string) ([]byte, bool)

	// Set stores value. cost may be ignored.
	// Returns false when the store rejected the write under pressure.
	Set(key string, value []byte, cost int64) bool

	// Del removes a key (best-effort).
	Del(key string)

	// Clear drops every key.
	Clear()

	// Close releases resources.
	Close() error
}
