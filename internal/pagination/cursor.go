// Package pagination implements opaque keyset cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors the server did not mint.
var ErrInvalidCursor = errors.New("pagination: invalid cursor")

// Cursor is a position in a result set ordered by (created_at, id) descending.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns the opaque wire form of the cursor.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor. Empty input means "from the start" and
// decodes to nil.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// Page trims a limit+1 fetch down to limit items and, when the extra item
// proved there is more, mints the next cursor from the last kept item.
func Page[T any](items []T, limit int, key func(T) (time.Time, string)) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	createdAt, id := key(items[len(items)-1])
	return items, Cursor{CreatedAt: createdAt, ID: id}.Encode(), true
}
