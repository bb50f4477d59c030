package model

import "time"

// Channel identifies the delivery transport for an outbound action.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSlack    Channel = "slack"
	ChannelSMS      Channel = "sms"
	ChannelInternal Channel = "internal"
)

// External returns true if delivery leaves the system boundary.
// Only the internal channel (notes-to-self, drafts) stays inside.
func (c Channel) External() bool {
	return c != ChannelInternal
}

// ParseChannel maps a string to a Channel. Fail-closed: unknown
// channels are treated as external email.
func ParseChannel(s string) Channel {
	switch Channel(s) {
	case ChannelEmail, ChannelSlack, ChannelSMS, ChannelInternal:
		return Channel(s)
	default:
		return ChannelEmail
	}
}

// ActionKind classifies what the action does.
type ActionKind string

const (
	KindSendMessage  ActionKind = "send_message"
	KindExecuteQuery ActionKind = "execute_query"
	KindModifyData   ActionKind = "modify_data"
)

// Severity grades a risk finding or safeguard signal.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank maps severity to a comparable integer for max-folding.
var SeverityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if SeverityRank[b] > SeverityRank[a] {
		return b
	}
	return a
}

// KillSwitch is the process-wide three-state delivery gate.
type KillSwitch string

const (
	KillSwitchSafe KillSwitch = "SAFE" // nothing leaves without per-item approval
	KillSwitchTest KillSwitch = "TEST" // internal-only auto-delivery permitted
	KillSwitchLive KillSwitch = "LIVE" // auto-send permitted for low-risk actions
)

// ParseKillSwitch maps a string to a KillSwitch state.
// Fail-closed: unknown states map to SAFE.
func ParseKillSwitch(s string) KillSwitch {
	switch KillSwitch(s) {
	case KillSwitchSafe, KillSwitchTest, KillSwitchLive:
		return KillSwitch(s)
	default:
		return KillSwitchSafe
	}
}

// ActionRequest is the unit being governed: one proposed outbound
// action. Never persisted on its own — it lives inside the
// ApprovalRecord produced for it.
type ActionRequest struct {
	ContactID string     `json:"contact_id"`
	Company   string     `json:"company"`
	Channel   Channel    `json:"channel"`
	Kind      ActionKind `json:"kind"`
	Subject   string     `json:"subject,omitempty"`
	Body      string     `json:"body"`
	Urgency   string     `json:"urgency,omitempty"` // caller-supplied hint, advisory only
	CreatedAt time.Time  `json:"created_at"`
}

// OutreachRecord is one prior send: an immutable historical fact used
// for rolling-window counts. Append-only, never mutated or deleted.
type OutreachRecord struct {
	ContactID string    `json:"contact_id"`
	Company   string    `json:"company"`
	Channel   Channel   `json:"channel"`
	SentAt    time.Time `json:"sent_at"`
}

// EngagementEvent is one engagement signal (reply, click, meeting
// booked) attributed to a contact.
type EngagementEvent struct {
	ContactID  string    `json:"contact_id"`
	Positive   bool      `json:"positive"`
	Weight     float64   `json:"weight"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Violation types produced by the safeguard evaluator.
const (
	ViolationContactFrequency    = "contact_frequency_exceeded"
	ViolationCompanyFrequency    = "company_frequency_exceeded"
	ViolationInsufficientSpacing = "insufficient_spacing"
	ViolationDailyCapReached     = "daily_cap_reached"
	ViolationOvercommunication   = "overcommunication_risk"
)

// Violation is one blocking safeguard result.
type Violation struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SafeguardVerdict is the full safeguard picture for one request.
// Passed is true iff there are zero blocking violations;
// recommendations never block.
type SafeguardVerdict struct {
	Passed          bool        `json:"passed"`
	Violations      []Violation `json:"violations,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// RiskFinding is one content-driven danger classification.
type RiskFinding struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RiskAssessment is the risk assessor's output for one request.
// Recommendation is operator display only and carries no behavioral
// weight; decisions branch exclusively on OverallRisk and
// SafeToAutoExecute.
type RiskAssessment struct {
	Findings          []RiskFinding `json:"findings,omitempty"`
	OverallRisk       Severity      `json:"overall_risk"`
	SafeToAutoExecute bool          `json:"safe_to_auto_execute"`
	Recommendation    string        `json:"recommendation,omitempty"`
}

// Status is the lifecycle state of an ApprovalRecord.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSent            Status = "sent"
	StatusFailed          Status = "failed"
	StatusBlocked         Status = "blocked"
)

// Terminal returns true if no transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusRejected, StatusBlocked:
		return true
	}
	return false
}

// ApprovalRecord is the durable, queryable unit tracking one action's
// full decision lifecycle. Status transitions are the only mutations
// allowed after creation.
type ApprovalRecord struct {
	ID        string           `json:"id"`
	Request   ActionRequest    `json:"request"`
	Safeguard SafeguardVerdict `json:"safeguard"`
	Risk      RiskAssessment   `json:"risk"`
	Status    Status           `json:"status"`

	// Policy basis snapshotted at creation time; later mode or
	// kill-switch changes cannot retroactively alter it.
	PolicyVersion uint64     `json:"policy_version"`
	ModeLevel     int        `json:"mode_level"`
	KillSwitch    KillSwitch `json:"kill_switch"`
	StepMode      bool       `json:"step_mode"`

	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}
