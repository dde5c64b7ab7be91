package review

import (
	"net/url"

	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/types"
)

// Cache key groups. Every duplicate entry lives under KeyDuplicates so a
// single invalidation reconciles lists, details and stats together.
const (
	KeyDuplicates = "duplicates"
	KeyLists      = "duplicates/list"
	KeyDetails    = "duplicates/detail"
	KeyStats      = "duplicates/stats"
)

// ListKey is the cache key of one list page.
func ListKey(p types.ListParams) string {
	return cache.Key(KeyLists, p.Key())
}

// DetailKey is the cache key of one match. The id is escaped so it stays a
// single path segment.
func DetailKey(id string) string {
	return cache.Key(KeyDetails, url.PathEscape(id))
}
