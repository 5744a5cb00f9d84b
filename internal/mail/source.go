// Package mail is the mail collaborator: it supplies message bodies for the
// unsubscribe pipeline and never deletes anything. The core only reads
// BodyHTML and reports outcomes back to its caller.
package mail

import (
	"context"
	"time"
)

// Message is one fetched email. MessageID is the provider's stable
// identifier (the RFC 5322 Message-Id for IMAP sources).
type Message struct {
	UID        uint32
	MessageID  string
	Subject    string
	From       string
	FromName   string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
}

// Source abstracts the mail provider. Implementations must be fetch-only;
// archiving is optional and is never invoked by the pipeline itself.
type Source interface {
	// Fetch returns messages received within the last given number of days,
	// capped at limit (0 means no cap).
	Fetch(ctx context.Context, days, limit int) ([]Message, error)
}

// Archiver is implemented by sources that can move processed messages out of
// the inbox.
type Archiver interface {
	Archive(uid uint32) error
}
