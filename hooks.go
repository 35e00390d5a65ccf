package analysiscache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the coordinator calls them
// on hot paths. Wrap slow sinks with hooks/async.
type Hooks interface {
	MemoryHit(key string)
	StoreHit(key string)
	// Neither tier had the key.
	Miss(key string)

	// This process started a generation for key.
	GenerationStarted(key string)
	// A caller joined a generation already in flight.
	GenerationShared(key string)
	GenerationFailed(key string, err error)

	// A store or generation-store operation failed.
	// op ∈ {"get", "put", "delete", "delete_all", "stats", "encode", "gen_snapshot", "gen_bump"}
	StoreError(op, key string, err error)

	// The key was invalidated while its generation ran; the result was not cached.
	StaleWriteSkipped(key string)

	// An unreadable entry was deleted on read.
	// reason ∈ {"decode"}
	SelfHeal(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MemoryHit(string)                 {}
func (NopHooks) StoreHit(string)                  {}
func (NopHooks) Miss(string)                      {}
func (NopHooks) GenerationStarted(string)         {}
func (NopHooks) GenerationShared(string)          {}
func (NopHooks) GenerationFailed(string, error)   {}
func (NopHooks) StoreError(string, string, error) {}
func (NopHooks) StaleWriteSkipped(string)         {}
func (NopHooks) SelfHeal(string, string)          {}
