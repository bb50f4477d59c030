package policy

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/sendwatch/internal/audit"
	"github.com/ppiankov/sendwatch/internal/model"
)

// Sentinel errors for privileged operations.
var (
	ErrInvalidMode  = errors.New("invalid mode level")
	ErrUnauthorized = errors.New("actor not authorized")
)

// AuditSink receives audit entries for policy mutations.
type AuditSink interface {
	Record(audit.Entry) error
}

// Snapshot is one consistent view of the global policy state.
// Evaluations read exactly one snapshot; concurrent mutations can
// never produce a torn read. Version increments on every mutation.
type Snapshot struct {
	Version    uint64           `json:"version"`
	Level      Level            `json:"level"`
	Parameters Parameters       `json:"parameters"`
	KillSwitch model.KillSwitch `json:"kill_switch"`
	StepMode   bool             `json:"step_mode"`
}

// ModeChange is the result of a successful SetMode call.
type ModeChange struct {
	Previous   Level
	Current    Level
	Parameters Parameters
}

// State is the durable subset of the policy snapshot carried between
// process runs.
type State struct {
	Version    uint64           `json:"version"`
	Level      Level            `json:"level"`
	KillSwitch model.KillSwitch `json:"kill_switch"`
	StepMode   bool             `json:"step_mode"`
}

// Controller owns the mode level, kill-switch, and step-mode flag.
// Reads are lock-free atomic snapshot loads; mutations are
// serialized, audited, and applied with an atomic swap.
//
// Single-operator system: exactly one actor holds mode-change
// privilege.
type Controller struct {
	mu       sync.Mutex
	cur      atomic.Pointer[Snapshot]
	table    LevelTable
	operator string
	sink     AuditSink
}

// NewController creates a controller with the given level table,
// starting at the given level with the kill-switch at SAFE and step
// mode off.
func NewController(table LevelTable, initial Level, operator string, sink AuditSink) (*Controller, error) {
	if err := ValidateMonotonic(table); err != nil {
		return nil, fmt.Errorf("policy: level table not monotonic: %w", err)
	}
	params, err := table.ForLevel(initial)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		table:    table,
		operator: operator,
		sink:     sink,
	}
	c.cur.Store(&Snapshot{
		Version:    1,
		Level:      initial,
		Parameters: params,
		KillSwitch: model.KillSwitchSafe,
	})
	return c, nil
}

// NewControllerFromState restores a controller from persisted state.
// No audit entry is produced: restoring is not a policy change. An
// unknown kill-switch string coerces to SAFE.
func NewControllerFromState(table LevelTable, st State, operator string, sink AuditSink) (*Controller, error) {
	c, err := NewController(table, st.Level, operator, sink)
	if err != nil {
		return nil, err
	}
	version := st.Version
	if version == 0 {
		version = 1
	}
	prev := c.cur.Load()
	c.cur.Store(&Snapshot{
		Version:    version,
		Level:      prev.Level,
		Parameters: prev.Parameters,
		KillSwitch: model.ParseKillSwitch(string(st.KillSwitch)),
		StepMode:   st.StepMode,
	})
	return c, nil
}

// State returns the durable subset of the current snapshot.
func (c *Controller) State() State {
	snap := c.cur.Load()
	return State{
		Version:    snap.Version,
		Level:      snap.Level,
		KillSwitch: snap.KillSwitch,
		StepMode:   snap.StepMode,
	}
}

// Snapshot returns the current policy snapshot. Never nil.
func (c *Controller) Snapshot() *Snapshot {
	return c.cur.Load()
}

// Parameters is a pure read of the current level's parameter bundle.
func (c *Controller) Parameters() Parameters {
	return c.cur.Load().Parameters
}

// SetMode changes the mode level. Fails with ErrInvalidMode for a
// level outside the scale and ErrUnauthorized for any actor other
// than the configured operator. The change is not applied if the
// audit entry cannot be written (fail closed).
func (c *Controller) SetMode(level Level, actor string) (ModeChange, error) {
	if !level.Valid() {
		return ModeChange{}, fmt.Errorf("%w: level %d outside [%d, %d]", ErrInvalidMode, int(level), MinLevel, MaxLevel)
	}
	if err := c.authorize(actor); err != nil {
		return ModeChange{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.cur.Load()
	params, err := c.table.ForLevel(level)
	if err != nil {
		return ModeChange{}, err
	}

	next := &Snapshot{
		Version:    prev.Version + 1,
		Level:      level,
		Parameters: params,
		KillSwitch: prev.KillSwitch,
		StepMode:   prev.StepMode,
	}

	if err := c.record(audit.Entry{
		Kind:          audit.KindModeChange,
		Actor:         actor,
		Previous:      strconv.Itoa(int(prev.Level)),
		Next:          strconv.Itoa(int(level)),
		Reason:        inferModeReason(prev.Level, level),
		PolicyVersion: next.Version,
	}); err != nil {
		return ModeChange{}, err
	}

	c.cur.Store(next)
	return ModeChange{Previous: prev.Level, Current: level, Parameters: params}, nil
}

// SetKillSwitch changes the delivery gate. Audited; fails closed if
// the audit entry cannot be written.
func (c *Controller) SetKillSwitch(state model.KillSwitch, actor string) error {
	if err := c.authorize(actor); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.cur.Load()
	next := &Snapshot{
		Version:    prev.Version + 1,
		Level:      prev.Level,
		Parameters: prev.Parameters,
		KillSwitch: model.ParseKillSwitch(string(state)),
		StepMode:   prev.StepMode,
	}

	if err := c.record(audit.Entry{
		Kind:          audit.KindKillSwitchChange,
		Actor:         actor,
		Previous:      string(prev.KillSwitch),
		Next:          string(next.KillSwitch),
		PolicyVersion: next.Version,
	}); err != nil {
		return err
	}

	c.cur.Store(next)
	return nil
}

// SetStepMode toggles the per-action literal-preview confirmation
// requirement.
func (c *Controller) SetStepMode(enabled bool, actor string) error {
	if err := c.authorize(actor); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.cur.Load()
	next := &Snapshot{
		Version:    prev.Version + 1,
		Level:      prev.Level,
		Parameters: prev.Parameters,
		KillSwitch: prev.KillSwitch,
		StepMode:   enabled,
	}

	if err := c.record(audit.Entry{
		Kind:          audit.KindStepModeChange,
		Actor:         actor,
		Previous:      strconv.FormatBool(prev.StepMode),
		Next:          strconv.FormatBool(enabled),
		PolicyVersion: next.Version,
	}); err != nil {
		return err
	}

	c.cur.Store(next)
	return nil
}

// Authorize reports whether the actor holds operator privilege.
// Rejections are security-relevant and should be logged by callers.
func (c *Controller) Authorize(actor string) error {
	return c.authorize(actor)
}

func (c *Controller) authorize(actor string) error {
	if actor == "" || actor != c.operator {
		return fmt.Errorf("%w: %q cannot change policy state", ErrUnauthorized, actor)
	}
	return nil
}

func (c *Controller) record(entry audit.Entry) error {
	if c.sink == nil {
		return nil
	}
	if err := c.sink.Record(entry); err != nil {
		return fmt.Errorf("policy: audit write failed, change not applied: %w", err)
	}
	return nil
}

// inferModeReason produces the advisory reason string logged with a
// mode change. Display only; nothing branches on it.
func inferModeReason(prev, next Level) string {
	switch {
	case next > prev:
		return "increasing urgency"
	case next < prev:
		return "scaling back"
	default:
		return "no change"
	}
}
