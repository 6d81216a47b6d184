// Package pagination pages newest-first listings with opaque keyset cursors.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the (timestamp, id) key of the last entry of a page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// After reports whether the entry keyed by (timestamp, id) belongs after the
// cursor in newest-first order. Every entry is after a nil cursor.
func (c *Cursor) After(timestamp time.Time, id string) bool {
	if c == nil {
		return true
	}
	if timestamp.Equal(c.Timestamp) {
		return id < c.LastID
	}
	return timestamp.Before(c.Timestamp)
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// NewPage trims items, fetched with limit+1, to limit and sets the cursor
// when more entries remain.
func NewPage[T any](items []T, limit int, key func(T) (string, time.Time)) PageResult[T] {
	if len(items) <= limit {
		return PageResult[T]{Items: items}
	}
	items = items[:limit]
	id, ts := key(items[len(items)-1])
	return PageResult[T]{Items: items, Cursor: EncodeCursor(id, ts), HasMore: true}
}

// EncodeCursor returns an URL-safe token for the key. An empty id yields "".
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(timestamp.UTC().Format(time.RFC3339Nano) + "|" + lastID))
}

// DecodeCursor parses a token from EncodeCursor. An empty token is a nil
// cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, Timestamp: timestamp}, nil
}
