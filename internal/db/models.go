package db

import (
	"time"
)

// Session is a stored browser session. Snapshot holds the JSON-encoded
// result of the last completed submission, or nil when there is none.
type Session struct {
	ID        string
	Snapshot  []byte // nullable JSONB
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}
