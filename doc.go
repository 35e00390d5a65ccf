// Package analysiscache coordinates expensive, externally generated analysis
// results across two cache tiers.
//
// Resolve consults a process-local memory tier, then a durable store, and on a
// miss runs exactly one generation per key no matter how many callers ask at
// once. Concurrent callers share the in-flight generation and its outcome.
// Successful results are written through to both tiers; failures are never
// cached and never leave the key locked.
//
// Components:
//   - memory.Cache[V]: non-blocking local tier (plain map or a bounded byte store).
//   - store.Store: durable tier (sqlite/postgres/mysql via gorm, badger, redis).
//   - codec.Codec[V]: (de)serializes V for the durable tier.
//   - genstore.GenStore: per-key generation counters.
//
// Invalidation bumps the key's generation before deleting it from both tiers.
// A generation that started earlier still completes for its waiters, but it
// observes the newer generation and skips the write-back, so an invalidated
// result is never resurrected:
//
//	v, src, err := coord.Resolve(ctx, key, func(ctx context.Context) (analysiscache.Generated[V], error) {
//		return runPipeline(ctx)
//	})
package analysiscache
