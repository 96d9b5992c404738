package ids

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier for storage keys.
// Safe for concurrent use.
func New() string {
	return ulid.Make().String()
}

// NewAt returns an identifier carrying the given timestamp. Used by
// backfills that need deterministic ordering.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
