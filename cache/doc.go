// Package cache provides the read-through cache used to memoize parsed
// dynamic finder names and other process-local lookups.
//
// # Overview
//
//   - CacheService: untyped read-through cache with key and prefix deletion
//   - KeySerializer: builds stable keys from an operation name and arguments
//   - GetOrFetch: typed wrapper over CacheService.GetOrFetch
//
// # Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	serializer := cache.NewDefaultKeySerializer("finder")
//
//	key := serializer.SerializeKey("Match", "find_by_name")
//	m, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (finder.Match, error) {
//		...
//	})
//
// # Keys
//
// Segments are joined with KeySeparator. Maps are serialized with sorted
// pairs, structs as JSON. Function values serialize to their address and are
// only stable within one process.
package cache
