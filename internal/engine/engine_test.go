package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/sendwatch/internal/config"
	"github.com/ppiankov/sendwatch/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Operator = "allan"
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestOpenWiresPipeline(t *testing.T) {
	cfg := testConfig(t)

	e, err := OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	snap := e.Controller.Snapshot()
	if int(snap.Level) != cfg.InitialLevel {
		t.Errorf("level = %d, want %d", snap.Level, cfg.InitialLevel)
	}
	if snap.KillSwitch != model.KillSwitchSafe {
		t.Errorf("kill-switch = %q, want SAFE", snap.KillSwitch)
	}

	rec, err := e.Gateway.Process(context.Background(), model.ActionRequest{
		ContactID: "jane@acme.test",
		Company:   "acme.test",
		Channel:   model.ChannelEmail,
		Kind:      model.KindSendMessage,
		Body:      "hello",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Status != model.StatusPendingApproval {
		t.Errorf("status = %q, want pending_approval under SAFE", rec.Status)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	cfg := testConfig(t)

	e, err := OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Controller.SetMode(5, "allan"); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := e.Controller.SetKillSwitch(model.KillSwitchTest, "allan"); err != nil {
		t.Fatalf("set kill-switch: %v", err)
	}
	if err := e.SaveState(); err != nil {
		t.Fatalf("save state: %v", err)
	}
	versionBefore := e.Controller.Snapshot().Version
	e.Close()

	e, err = OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e.Close()

	snap := e.Controller.Snapshot()
	if snap.Level != 5 {
		t.Errorf("restored level = %d, want 5", snap.Level)
	}
	if snap.KillSwitch != model.KillSwitchTest {
		t.Errorf("restored kill-switch = %q, want TEST", snap.KillSwitch)
	}
	if snap.Version != versionBefore {
		t.Errorf("restored version = %d, want %d", snap.Version, versionBefore)
	}
}

func TestCorruptStateFallsBackToDefaults(t *testing.T) {
	cfg := testConfig(t)

	e, err := OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatal(err)
	}
	e.Close()

	if err := os.WriteFile(cfg.StatePath(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	e, err = OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatalf("reopen with corrupt state: %v", err)
	}
	defer e.Close()

	snap := e.Controller.Snapshot()
	if int(snap.Level) != cfg.InitialLevel {
		t.Errorf("level = %d, want initial %d", snap.Level, cfg.InitialLevel)
	}
	if snap.KillSwitch != model.KillSwitchSafe {
		t.Errorf("kill-switch = %q, want SAFE after corrupt state", snap.KillSwitch)
	}
}

func TestDeliveredMessageLandsInOutbox(t *testing.T) {
	cfg := testConfig(t)

	e, err := OpenWithConfig(cfg, "sha256:test")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	rec, err := e.Gateway.Process(context.Background(), model.ActionRequest{
		ContactID: "jane@acme.test",
		Company:   "acme.test",
		Channel:   model.ChannelEmail,
		Kind:      model.KindSendMessage,
		Subject:   "hi",
		Body:      "hello",
	})
	if err != nil {
		t.Fatal(err)
	}

	sent, err := e.Gateway.Approve(context.Background(), rec.ID, "allan")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if sent.Status != model.StatusSent {
		t.Fatalf("status = %q, want sent", sent.Status)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutboxDir(), rec.ID+".msg")); err != nil {
		t.Errorf("outbox file missing: %v", err)
	}
}
