// Package delivery provides the default delivery transport: an
// outbox directory with one file per sent message, plus an optional
// recipient allowlist. Real transports (SMTP relays, chat webhooks)
// implement the same contract upstream; the outbox is what a local
// deployment hands to its sending agent.
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/sendwatch/internal/model"
)

// Outbox writes approved messages as files, one per record. Files are
// written atomically via tmp+rename so a consumer never reads a
// partial message.
type Outbox struct {
	dir       string
	allowlist *Allowlist // nil = no recipient restriction
}

// NewOutbox creates the outbox directory if needed.
func NewOutbox(dir string, allowlist *Allowlist) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("delivery: create outbox: %w", err)
	}
	return &Outbox{dir: dir, allowlist: allowlist}, nil
}

// Deliver writes the record's message to the outbox. An external
// recipient not on the allowlist is a delivery failure, not a silent
// drop.
func (o *Outbox) Deliver(ctx context.Context, rec model.ApprovalRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := rec.Request
	if o.allowlist != nil && req.Channel.External() && !o.allowlist.IsAllowed(req.ContactID) {
		return fmt.Errorf("delivery: recipient %q not on allowlist", req.ContactID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Record-ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&b, "To: %s\n", req.ContactID)
	if req.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", req.Company)
	}
	if req.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	}
	fmt.Fprintf(&b, "Date: %s\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("\n")
	b.WriteString(req.Body)
	b.WriteString("\n")

	path := filepath.Join(o.dir, rec.ID+".msg")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("delivery: write message: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("delivery: commit message: %w", err)
	}
	return nil
}
