package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_cache_hits_total",
		Help: "Reconciliation lookups served from Redis",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_cache_misses_total",
		Help: "Reconciliation lookups not found in Redis",
	})

	// CacheStoredBytes counts bytes written, not current size.
	CacheStoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_cache_stored_bytes_total",
		Help: "Bytes written to the Redis response cache",
	})

	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_cache_conditional_requests_total",
		Help: "Requests revalidated with If-None-Match or If-Modified-Since",
	})

	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_cache_not_modified_total",
		Help: "304 Not Modified responses served from cache",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_cache_errors_total",
		Help: "Redis cache operation errors",
	}, []string{"operation"}) // get, set, delete, invalidate
)
