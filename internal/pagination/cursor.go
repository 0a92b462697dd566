// Package pagination implements keyset pagination over videos ordered by
// creation time, newest first.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize mirrors the page size of the latest-videos listing.
	DefaultPageSize = 5
	// MaxPageSize bounds a single page.
	MaxPageSize = 50
)

// ErrInvalidCursor indicates a cursor that was not produced by Encode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor identifies the last row of a page by its sort key.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the cursor points at the start of the listing.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := strconv.FormatInt(c.CreatedAt.UTC().UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. An empty token yields the zero cursor.
func Decode(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// Limit clamps a requested page size into [1, MaxPageSize], defaulting to
// DefaultPageSize when unset.
func Limit(requested int) int {
	switch {
	case requested <= 0:
		return DefaultPageSize
	case requested > MaxPageSize:
		return MaxPageSize
	default:
		return requested
	}
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
}

// NewPage builds a page from the fetched items. A full page is assumed to have
// more rows behind it; key extracts the cursor of the last item.
func NewPage[T any](items []T, limit int, key func(T) Cursor) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items, HasMore: len(items) == limit && limit > 0}
	if page.HasMore {
		page.NextCursor = key(items[len(items)-1]).Encode()
	}
	return page
}
