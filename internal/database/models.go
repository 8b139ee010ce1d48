package database

import "time"

// Session is the stored topic for one session key. Keys are opaque to the
// database; the session package uses "context:<user id>".
type Session struct {
	Key       string    `db:"key"`
	Topic     string    `db:"topic"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
