package publicapi

import (
	"strings"
	"time"
)

// The feed cursor is "<updated_at RFC3339Nano>|<id>". Pagination is
// keyset-based: strictly older than the cursor row, with the id as a
// tiebreak so the order stays stable when timestamps collide.
type cursor struct {
	UpdatedAt time.Time
	ID        string
}

func encodeCursor(updatedAt time.Time, id string) string {
	return updatedAt.UTC().Format(time.RFC3339Nano) + "|" + id
}

func parseCursor(raw string) *cursor {
	if raw == "" {
		return nil
	}
	ts, id, found := strings.Cut(raw, "|")
	if !found || id == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil
	}
	return &cursor{UpdatedAt: t, ID: id}
}
