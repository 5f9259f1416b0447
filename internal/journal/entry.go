package journal

import "time"

// Entry is one journaled event.
type Entry struct {
	ID        int64
	SessionID string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}
