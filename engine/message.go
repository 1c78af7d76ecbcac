package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes ordinary chat from synthetic log entries.
type Kind string

const (
	KindChat    Kind = "chat"
	KindSummary Kind = "summary" // synthetic condensation of an evicted window chunk
	KindNotice  Kind = "notice"  // join/leave/system notices
)

// Message is a single immutable log entry. Seq is monotonic within one
// server run and orders messages by recency; ID is the stable wire
// identifier. To is empty for broadcast messages.
type Message struct {
	Seq     int64     `json:"seq"`
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to,omitempty"`
	Content string    `json:"content"`
	Kind    Kind      `json:"kind"`
	ReplyTo string    `json:"replyTo,omitempty"`
	At      time.Time `json:"at"`
}

func newMessageID() string {
	return uuid.NewString()
}

// references reports whether content textually mentions name, with or
// without an @ marker. Matching is case-insensitive substring matching,
// same as the original mention dispatch.
func references(content, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(name))
}
