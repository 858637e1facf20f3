package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "favorites"

// CacheKey identifies a cached lookup. Lookups are authorized per user, so
// the user id is part of the key.
type CacheKey struct {
	// Endpoint is the request path, e.g. "/business".
	Endpoint string

	// QueryParams are folded into the key in sorted order.
	QueryParams url.Values

	// UserID scopes the entry to the session that fetched it (0 = shared).
	UserID int64
}

// String renders the key, e.g.
//
//	favorites:business:location=40,-71:type=1:where={...}:user=42
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := k.QueryParams[name]
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
		}
	}

	if k.UserID > 0 {
		parts = append(parts, fmt.Sprintf("user=%d", k.UserID))
	}

	return strings.Join(parts, ":")
}

// userPattern matches every key stored for userID.
func userPattern(userID int64) string {
	return fmt.Sprintf("%s:*:user=%d", KeyPrefix, userID)
}
