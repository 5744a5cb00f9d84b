package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
)

// IMAPConfig holds connection settings for an IMAP source.
type IMAPConfig struct {
	Server        string
	Port          int
	Email         string
	Password      string
	Folder        string
	ArchiveFolder string
}

// IMAPSource fetches messages over IMAP with TLS.
type IMAPSource struct {
	config IMAPConfig
	client *client.Client
}

func NewIMAPSource(cfg IMAPConfig) *IMAPSource {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &IMAPSource{config: cfg}
}

// Connect establishes the IMAP connection and logs in.
func (s *IMAPSource) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.config.Email, s.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	s.client = c
	return nil
}

// Disconnect logs out of the IMAP session.
func (s *IMAPSource) Disconnect() error {
	if s.client != nil {
		return s.client.Logout()
	}
	return nil
}

// Fetch returns messages from the configured folder received within the last
// N days, newest last, capped at limit when limit > 0.
func (s *IMAPSource) Fetch(ctx context.Context, days, limit int) ([]Message, error) {
	if s.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := s.client.Select(s.config.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -days)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek so fetching does not mark anything as read.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var out []Message
	for msg := range messages {
		m, err := parseMessage(msg, section)
		if err != nil {
			log.Printf("warning: failed to parse message: %v", err)
			continue
		}
		if m != nil {
			out = append(out, *m)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return out, nil
}

// Archive moves a processed message to the archive folder, falling back to
// copy+delete for servers without MOVE.
func (s *IMAPSource) Archive(uid uint32) error {
	if s.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}
	folder := s.config.ArchiveFolder
	if folder == "" {
		return nil
	}

	// Reselect read-write; Fetch selects read-only.
	if _, err := s.client.Select(s.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := s.client.UidMove(seqSet, folder); err == nil {
		return nil
	}

	if err := s.client.UidCopy(seqSet, folder); err != nil {
		return fmt.Errorf("failed to copy message to %s: %w", folder, err)
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to flag message deleted: %w", err)
	}
	return s.client.Expunge(nil)
}

// parseMessage converts an IMAP message into our Message struct, extracting
// the first text/plain and text/html parts.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Message, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	m := &Message{
		UID:        msg.Uid,
		MessageID:  msg.Envelope.MessageId,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		m.From = from.Address()
		m.FromName = from.PersonalName
	}

	r := msg.GetBody(section)
	if r == nil {
		return m, nil
	}

	mr, err := gomail.CreateReader(r)
	if err != nil {
		return m, nil // envelope only on parse error
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := p.Header.(*gomail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && m.BodyText == "" {
				m.BodyText = string(body)
			} else if strings.HasPrefix(ct, "text/html") && m.BodyHTML == "" {
				m.BodyHTML = string(body)
			}
		}
	}

	return m, nil
}
