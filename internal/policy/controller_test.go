package policy

import (
	"errors"
	"testing"

	"github.com/ppiankov/sendwatch/internal/audit"
	"github.com/ppiankov/sendwatch/internal/model"
)

type memSink struct {
	entries []audit.Entry
	fail    bool
}

func (m *memSink) Record(e audit.Entry) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, e)
	return nil
}

func newTestController(t *testing.T, sink AuditSink) *Controller {
	t.Helper()
	c, err := NewController(DefaultLevels(), 3, "allan", sink)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return c
}

func TestSetModeAppliesParameters(t *testing.T) {
	sink := &memSink{}
	c := newTestController(t, sink)

	change, err := c.SetMode(5, "allan")
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if change.Previous != 3 || change.Current != 5 {
		t.Errorf("change = %d -> %d, want 3 -> 5", change.Previous, change.Current)
	}

	snap := c.Snapshot()
	if snap.Level != 5 {
		t.Errorf("snapshot level = %d", snap.Level)
	}
	if snap.Parameters.DailyOutreachCap != 35 {
		t.Errorf("daily cap = %d, want 35", snap.Parameters.DailyOutreachCap)
	}
	if snap.Version != 2 {
		t.Errorf("version = %d, want 2", snap.Version)
	}
}

func TestSetModeInvalidLevel(t *testing.T) {
	c := newTestController(t, &memSink{})

	_, err := c.SetMode(9, "allan")
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if c.Snapshot().Level != 3 {
		t.Error("failed SetMode must not change state")
	}
}

func TestSetModeUnauthorized(t *testing.T) {
	c := newTestController(t, &memSink{})

	_, err := c.SetMode(4, "intruder")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.SetMode(4, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty actor, got %v", err)
	}
}

func TestSetModeAuditsReason(t *testing.T) {
	sink := &memSink{}
	c := newTestController(t, sink)

	c.SetMode(6, "allan")
	c.SetMode(2, "allan")

	if len(sink.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(sink.entries))
	}
	if sink.entries[0].Reason != "increasing urgency" {
		t.Errorf("3->6 reason = %q", sink.entries[0].Reason)
	}
	if sink.entries[1].Reason != "scaling back" {
		t.Errorf("6->2 reason = %q", sink.entries[1].Reason)
	}
	if sink.entries[0].Kind != audit.KindModeChange {
		t.Errorf("kind = %q", sink.entries[0].Kind)
	}
}

func TestAuditFailureBlocksChange(t *testing.T) {
	sink := &memSink{fail: true}
	c := newTestController(t, sink)

	if _, err := c.SetMode(5, "allan"); err == nil {
		t.Fatal("expected error when audit sink fails")
	}
	if c.Snapshot().Level != 3 {
		t.Error("mode must not change when audit write fails")
	}
	if err := c.SetKillSwitch(model.KillSwitchLive, "allan"); err == nil {
		t.Fatal("expected error when audit sink fails")
	}
	if c.Snapshot().KillSwitch != model.KillSwitchSafe {
		t.Error("kill-switch must not change when audit write fails")
	}
}

func TestKillSwitchDefaultsSafe(t *testing.T) {
	c := newTestController(t, &memSink{})
	if ks := c.Snapshot().KillSwitch; ks != model.KillSwitchSafe {
		t.Errorf("initial kill-switch = %q, want SAFE", ks)
	}
}

func TestSetKillSwitchAndStepMode(t *testing.T) {
	sink := &memSink{}
	c := newTestController(t, sink)

	if err := c.SetKillSwitch(model.KillSwitchLive, "allan"); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}
	if err := c.SetStepMode(true, "allan"); err != nil {
		t.Fatalf("SetStepMode: %v", err)
	}

	snap := c.Snapshot()
	if snap.KillSwitch != model.KillSwitchLive {
		t.Errorf("kill-switch = %q", snap.KillSwitch)
	}
	if !snap.StepMode {
		t.Error("step mode not set")
	}
	if snap.Version != 3 {
		t.Errorf("version = %d, want 3", snap.Version)
	}
	if snap.Level != 3 {
		t.Error("kill-switch change must not touch mode level")
	}
}

func TestUnknownKillSwitchFailsClosed(t *testing.T) {
	c := newTestController(t, &memSink{})

	if err := c.SetKillSwitch(model.KillSwitch("YOLO"), "allan"); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}
	if ks := c.Snapshot().KillSwitch; ks != model.KillSwitchSafe {
		t.Errorf("unknown state coerced to %q, want SAFE", ks)
	}
}

func TestNonMonotonicTableRejected(t *testing.T) {
	table := DefaultLevels()
	table[5].EngagementDecayThreshold = 0.9 // level 6 tighter than level 5

	if _, err := NewController(table, 3, "allan", &memSink{}); err == nil {
		t.Fatal("expected constructor to reject non-monotonic table")
	}
}
