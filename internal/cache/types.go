package cache

import "time"

// Stats holds cache metrics.
type Stats struct {
	Capacity int // Maximum number of entries
	Entries  int // Current number of entries
	Bytes    int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

// Store is the subset of AudioCache used by callers that only read and write.
type Store interface {
	Get(key string) (string, bool)
	Put(key, value string)
}

var _ Store = (*AudioCache)(nil)
