// Package cache keeps reconciliation lookups (the batch fetch that turns
// favorite references into businesses or orders) in Redis.
//
// Entries are keyed by endpoint, sorted query parameters and the user id of
// the session that fetched them, so one user's lookups are never served to
// another:
//
//	key := cache.CacheKey{
//		Endpoint:    "/business",
//		QueryParams: url.Values{"where": {where}, "type": {"1"}},
//		UserID:      42,
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then manager.Set(ctx, key, cache.ResponseToEntry(resp, ttl))
//	}
//
// Lifetime comes from Cache-Control max-age, then Expires, then the
// manager's fallback TTL. Entries with an ETag or Last-Modified are
// revalidated with conditional requests; a 304 extends the stored entry.
//
// InvalidateUser removes everything cached for a user and backs an explicit
// favorites refresh.
package cache
