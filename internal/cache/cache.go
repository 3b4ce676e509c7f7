package cache

import "context"

// PriceCache stores formatted price payloads keyed by normalized symbol.
// Get treats absent and expired entries identically: both are a miss.
// Implementations must be safe for concurrent use; callers do not hold a
// key across the read-fetch-write sequence, so two concurrent misses for
// the same key may both fetch and both write (last write wins).
type PriceCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, value string)
}
