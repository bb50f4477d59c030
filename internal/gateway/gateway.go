// Package gateway is the terminal decision point for every proposed
// outbound action. It combines the safeguard verdict, the risk
// assessment, and the policy snapshot (mode, kill-switch, step mode)
// into one of three outcomes: auto-send, queue for human approval,
// or block — and owns the durable approval queue and the audit
// trail of every step.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/sendwatch/internal/audit"
	"github.com/ppiankov/sendwatch/internal/model"
	"github.com/ppiankov/sendwatch/internal/policy"
	"github.com/ppiankov/sendwatch/internal/risk"
	"github.com/ppiankov/sendwatch/internal/safeguard"
)

// Sentinel errors for record lifecycle operations.
var (
	ErrNotPending      = errors.New("record is not pending approval")
	ErrTerminalState   = errors.New("record is in a terminal state")
	ErrReasonRequired  = errors.New("rejection reason is required")
	ErrNotApproved     = errors.New("record is not approved")
	ErrPreviewMismatch = errors.New("preview does not match record content")
	ErrApprovalExpired = errors.New("approval has expired, re-approval required")
)

// DeliveryError wraps a failure from the delivery collaborator.
// Never retried automatically: retrying requires a brand-new request.
type DeliveryError struct {
	RecordID string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for record %s: %v", e.RecordID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Deliverer attempts delivery of an approved record over its channel.
// Opaque to the gateway; transport specifics live with the caller.
type Deliverer interface {
	Deliver(ctx context.Context, rec model.ApprovalRecord) error
}

// HistoryAppender records a committed send for future safeguard
// evaluations.
type HistoryAppender interface {
	AppendOutreach(rec model.OutreachRecord) error
}

// Preview is the literal content an operator confirms in step mode.
// Every field must match the record exactly.
type Preview struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// SuppressionList vetoes outreach to opted-out targets before any
// other evaluation runs.
type SuppressionList interface {
	Suppressed(contactID, company string) (bool, string)
}

// Config holds gateway tuning knobs.
type Config struct {
	// DeliveryTimeout bounds the delivery attempt. Zero means 30s.
	DeliveryTimeout time.Duration
	// ApprovalTTL bounds how long an approval stays confirmable in
	// step mode. Zero means 24h.
	ApprovalTTL time.Duration
	// ConfigHash is stamped into decision audit entries.
	ConfigHash string
	// Suppression optionally vetoes targets on the do-not-contact
	// list. Nil disables the check.
	Suppression SuppressionList
}

// Gateway is the approval state machine.
type Gateway struct {
	policy     *policy.Controller
	safeguards *safeguard.Evaluator
	records    *RecordStore
	history    HistoryAppender
	auditLog   policy.AuditSink
	deliverer  Deliverer
	cfg        Config
	locks      *keyLock
	now        func() time.Time
}

// New creates a Gateway. All collaborators are required except the
// deliverer, which may be nil when the process only queues and
// inspects (delivery attempts then fail with a DeliveryError).
func New(ctrl *policy.Controller, ev *safeguard.Evaluator, records *RecordStore, history HistoryAppender, auditLog policy.AuditSink, deliverer Deliverer, cfg Config) *Gateway {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.ApprovalTTL <= 0 {
		cfg.ApprovalTTL = 24 * time.Hour
	}
	return &Gateway{
		policy:     ctrl,
		safeguards: ev,
		records:    records,
		history:    history,
		auditLog:   auditLog,
		deliverer:  deliverer,
		cfg:        cfg,
		locks:      newKeyLock(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process evaluates one action request end to end and returns its
// durable record. A blocked action is a normal outcome, not an
// error; errors are reserved for infrastructure faults that prevent
// the record itself from being persisted or audited.
func (g *Gateway) Process(ctx context.Context, req model.ActionRequest) (*model.ApprovalRecord, error) {
	snap := g.policy.Snapshot()
	now := g.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}

	rec := &model.ApprovalRecord{
		ID:            uuid.NewString(),
		Request:       req,
		PolicyVersion: snap.Version,
		ModeLevel:     int(snap.Level),
		KillSwitch:    snap.KillSwitch,
		StepMode:      snap.StepMode,
		CreatedAt:     now,
	}

	// The do-not-contact list vetoes before anything else runs; a
	// suppressed target is not worth a history read.
	if g.cfg.Suppression != nil {
		if hit, reason := g.cfg.Suppression.Suppressed(req.ContactID, req.Company); hit {
			return g.finalize(rec, model.StatusBlocked, "system", reason)
		}
	}

	// Evaluation and, for auto-sends, the history append share one
	// critical section per contact/company so two concurrent actions
	// for the same target cannot both race past the frequency checks.
	unlock := g.locks.acquire(contactKey(req.ContactID), companyKey(req.Company))

	verdict, evalErr := g.safeguards.Evaluate(req, snap.Parameters, now)
	rec.Safeguard = verdict
	rec.Risk = risk.Assess(req)

	if evalErr != nil {
		// Fail closed: unknown history means the action is blocked,
		// never allowed through on stale state.
		unlock()
		return g.finalize(rec, model.StatusBlocked, "system",
			fmt.Sprintf("history unavailable, failing closed: %v", evalErr))
	}

	if !verdict.Passed {
		unlock()
		return g.finalize(rec, model.StatusBlocked, "system", joinViolations(verdict.Violations))
	}

	if !g.autoSendPermitted(snap, rec) {
		unlock()
		return g.finalize(rec, model.StatusPendingApproval, "system", "")
	}

	// Commit to sending: record the outreach before the delivery
	// attempt so the next evaluation for this contact sees it.
	if err := g.history.AppendOutreach(model.OutreachRecord{
		ContactID: req.ContactID,
		Company:   req.Company,
		Channel:   req.Channel,
		SentAt:    now,
	}); err != nil {
		unlock()
		return g.finalize(rec, model.StatusBlocked, "system",
			fmt.Sprintf("cannot record outreach, failing closed: %v", err))
	}

	rec.Status = model.StatusApproved
	rec.Reason = "auto-approved by policy"
	if err := g.persistAndAudit(rec, "created", string(model.StatusApproved), "system", rec.Reason); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	return g.deliver(ctx, rec, "system")
}

// Approve transitions a pending record to approved. Without step
// mode delivery is attempted immediately; with step mode the record
// stays approved until Confirm supplies the literal preview.
func (g *Gateway) Approve(ctx context.Context, recordID, actor string) (*model.ApprovalRecord, error) {
	if err := g.authorize(actor); err != nil {
		return nil, err
	}

	rec, err := g.records.Get(recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminalState, rec.ID, rec.Status)
	}
	if rec.Status != model.StatusPendingApproval {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, rec.ID, rec.Status)
	}

	now := g.now()
	prev := rec.Status
	rec.Status = model.StatusApproved
	rec.ApprovedAt = &now
	if err := g.persistAndAudit(rec, string(prev), string(rec.Status), actor, ""); err != nil {
		return nil, err
	}

	if rec.StepMode {
		// Delivery waits for an explicit literal-preview confirmation.
		return rec, nil
	}

	if err := g.appendBeforeDelivery(rec, now); err != nil {
		return g.finalizeExisting(rec, model.StatusFailed, actor,
			fmt.Sprintf("cannot record outreach, delivery aborted: %v", err))
	}
	return g.deliver(ctx, rec, actor)
}

// Reject transitions a pending record to rejected. Reason required.
func (g *Gateway) Reject(recordID, actor, reason string) (*model.ApprovalRecord, error) {
	if err := g.authorize(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	rec, err := g.records.Get(recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminalState, rec.ID, rec.Status)
	}
	if rec.Status != model.StatusPendingApproval && rec.Status != model.StatusApproved {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, rec.ID, rec.Status)
	}

	return g.finalizeExisting(rec, model.StatusRejected, actor, reason)
}

// Confirm completes a step-mode approval: the supplied preview must
// match the record's recipient, subject, and body exactly before
// delivery is attempted. An expired approval must be re-approved.
func (g *Gateway) Confirm(ctx context.Context, recordID, actor string, preview Preview) (*model.ApprovalRecord, error) {
	if err := g.authorize(actor); err != nil {
		return nil, err
	}

	rec, err := g.records.Get(recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusApproved {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotApproved, rec.ID, rec.Status)
	}

	now := g.now()
	if rec.ApprovedAt != nil && now.Sub(*rec.ApprovedAt) > g.cfg.ApprovalTTL {
		return nil, fmt.Errorf("%w: approved %s ago", ErrApprovalExpired, now.Sub(*rec.ApprovedAt).Round(time.Second))
	}

	if preview.Recipient != rec.Request.ContactID ||
		preview.Subject != rec.Request.Subject ||
		preview.Body != rec.Request.Body {
		err := g.record(audit.Entry{
			Kind:      audit.KindTransition,
			RecordID:  rec.ID,
			ContactID: rec.Request.ContactID,
			Company:   rec.Request.Company,
			Actor:     actor,
			Previous:  string(rec.Status),
			Next:      string(rec.Status),
			Reason:    "preview confirmation rejected: content mismatch",
		})
		if err != nil {
			return nil, fmt.Errorf("preview mismatch, and audit write failed: %w", err)
		}
		return nil, ErrPreviewMismatch
	}

	rec.ConfirmedAt = &now
	if err := g.persistAndAudit(rec, string(rec.Status), string(rec.Status), actor, "preview confirmed"); err != nil {
		return nil, err
	}

	if err := g.appendBeforeDelivery(rec, now); err != nil {
		return g.finalizeExisting(rec, model.StatusFailed, actor,
			fmt.Sprintf("cannot record outreach, delivery aborted: %v", err))
	}
	return g.deliver(ctx, rec, actor)
}

// ListPending returns all records awaiting approval.
func (g *Gateway) ListPending() ([]model.ApprovalRecord, error) {
	return g.records.ListByStatus(model.StatusPendingApproval)
}

// Get returns one record by ID.
func (g *Gateway) Get(recordID string) (*model.ApprovalRecord, error) {
	return g.records.Get(recordID)
}

// autoSendPermitted applies the kill-switch branch of the decision
// table. Blocking violations are already handled by the caller.
// Level 6 does not bypass this: kill-switch and mode stay orthogonal.
func (g *Gateway) autoSendPermitted(snap *policy.Snapshot, rec *model.ApprovalRecord) bool {
	if !rec.Risk.SafeToAutoExecute {
		return false
	}
	// Step mode demands a literal preview confirmation before any
	// delivery; an unattended auto-send cannot satisfy that, so the
	// action queues instead.
	if snap.StepMode {
		return false
	}
	switch snap.KillSwitch {
	case model.KillSwitchSafe:
		return false
	case model.KillSwitchTest:
		return !rec.Request.Channel.External()
	case model.KillSwitchLive:
		return !snap.Parameters.Strictness.RequiresReview()
	default:
		return false
	}
}

// deliver attempts delivery with a bounded timeout and finalizes the
// record as sent or failed. No key lock is held while waiting.
func (g *Gateway) deliver(ctx context.Context, rec *model.ApprovalRecord, actor string) (*model.ApprovalRecord, error) {
	if rec.StepMode && rec.ConfirmedAt == nil {
		// Step mode without a logged confirmation never reaches here;
		// the guard is kept for direct misuse of the API.
		return rec, fmt.Errorf("step mode requires preview confirmation before delivery")
	}

	var derr error
	if g.deliverer == nil {
		derr = fmt.Errorf("no delivery channel configured")
	} else {
		dctx, cancel := context.WithTimeout(ctx, g.cfg.DeliveryTimeout)
		derr = g.deliverer.Deliver(dctx, *rec)
		cancel()
	}

	if derr != nil {
		wrapped := &DeliveryError{RecordID: rec.ID, Err: derr}
		if _, err := g.finalizeExisting(rec, model.StatusFailed, actor, wrapped.Error()); err != nil {
			return rec, err
		}
		return rec, nil
	}

	return g.finalizeExisting(rec, model.StatusSent, actor, "")
}

// appendBeforeDelivery records the outreach inside the contact's
// critical section before the delivery attempt runs outside it.
func (g *Gateway) appendBeforeDelivery(rec *model.ApprovalRecord, now time.Time) error {
	unlock := g.locks.acquire(contactKey(rec.Request.ContactID), companyKey(rec.Request.Company))
	defer unlock()
	return g.history.AppendOutreach(model.OutreachRecord{
		ContactID: rec.Request.ContactID,
		Company:   rec.Request.Company,
		Channel:   rec.Request.Channel,
		SentAt:    now,
	})
}

// finalize persists a freshly created record in its first resolved
// status and audits the decision.
func (g *Gateway) finalize(rec *model.ApprovalRecord, status model.Status, actor, reason string) (*model.ApprovalRecord, error) {
	rec.Status = status
	rec.Reason = reason
	if status.Terminal() {
		now := g.now()
		rec.ResolvedAt = &now
	}
	if err := g.persistAndAudit(rec, "created", string(status), actor, reason); err != nil {
		return nil, err
	}
	return rec, nil
}

// finalizeExisting transitions an already persisted record.
func (g *Gateway) finalizeExisting(rec *model.ApprovalRecord, status model.Status, actor, reason string) (*model.ApprovalRecord, error) {
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminalState, rec.ID, rec.Status)
	}
	prev := rec.Status
	rec.Status = status
	if reason != "" {
		rec.Reason = reason
	}
	if status.Terminal() {
		now := g.now()
		rec.ResolvedAt = &now
	}
	if err := g.persistAndAudit(rec, string(prev), string(status), actor, reason); err != nil {
		return nil, err
	}
	return rec, nil
}

// persistAndAudit writes the record then the audit entry. An audit
// write failure is surfaced as an error — the engine fails closed
// rather than acting without a trail.
func (g *Gateway) persistAndAudit(rec *model.ApprovalRecord, prev, next, actor, reason string) error {
	if err := g.records.Put(rec); err != nil {
		return fmt.Errorf("gateway: persist record %s: %w", rec.ID, err)
	}

	entry := audit.Entry{
		Kind:          audit.KindTransition,
		RecordID:      rec.ID,
		ContactID:     rec.Request.ContactID,
		Company:       rec.Request.Company,
		Actor:         actor,
		Previous:      prev,
		Next:          next,
		Reason:        reason,
		PolicyVersion: rec.PolicyVersion,
		ConfigHash:    g.cfg.ConfigHash,
	}
	if prev == "created" {
		entry.Kind = audit.KindDecision
		entry.Safeguard = &rec.Safeguard
		entry.Risk = &rec.Risk
	}
	if err := g.record(entry); err != nil {
		return err
	}
	return nil
}

func (g *Gateway) record(entry audit.Entry) error {
	if g.auditLog == nil {
		return nil
	}
	if err := g.auditLog.Record(entry); err != nil {
		return fmt.Errorf("gateway: audit write failed: %w", err)
	}
	return nil
}

func (g *Gateway) authorize(actor string) error {
	if err := g.policy.Authorize(actor); err != nil {
		// Security-relevant: log the refused attempt.
		g.record(audit.Entry{
			Kind:   audit.KindTransition,
			Actor:  actor,
			Reason: "unauthorized operator action refused",
		})
		return err
	}
	return nil
}

func joinViolations(violations []model.Violation) string {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

func contactKey(id string) string {
	if id == "" {
		return ""
	}
	return "contact:" + id
}

func companyKey(co string) string {
	if co == "" {
		return ""
	}
	return "company:" + co
}
