// Package engine wires the governance pipeline together: config,
// policy controller, safeguard evaluator, risk assessor, history
// store, record store, audit log, and the delivery outbox. The CLI
// and the HTTP server both run on one Engine.
package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/sendwatch/internal/audit"
	"github.com/ppiankov/sendwatch/internal/config"
	"github.com/ppiankov/sendwatch/internal/delivery"
	"github.com/ppiankov/sendwatch/internal/gateway"
	"github.com/ppiankov/sendwatch/internal/history"
	"github.com/ppiankov/sendwatch/internal/policy"
	"github.com/ppiankov/sendwatch/internal/safeguard"
	"github.com/ppiankov/sendwatch/internal/suppress"
)

// Engine is one fully wired governance pipeline.
type Engine struct {
	Config     *config.Config
	ConfigHash string
	Audit      *audit.Log
	History    *history.Store
	Records    *gateway.RecordStore
	Controller *policy.Controller
	Gateway    *gateway.Gateway

	statePath string
}

// Open loads the config from path (empty = default location) and
// wires the full pipeline. Policy state persisted by a previous run
// is restored; a missing or corrupt state file starts fresh at the
// configured initial level with the kill-switch at SAFE.
func Open(cfgPath string) (*Engine, error) {
	cfg, hash, err := config.LoadWithHash(cfgPath)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(cfg, hash)
}

// OpenWithConfig wires the pipeline from an already loaded config.
func OpenWithConfig(cfg *config.Config, configHash string) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	auditLog, err := audit.Open(cfg.AuditLogPath())
	if err != nil {
		return nil, err
	}

	table, err := cfg.LevelTable()
	if err != nil {
		auditLog.Close()
		return nil, err
	}

	ctrl, err := restoreController(cfg, table, auditLog)
	if err != nil {
		auditLog.Close()
		return nil, err
	}

	hist, err := history.NewStore(cfg.HistoryDBPath())
	if err != nil {
		auditLog.Close()
		return nil, err
	}

	records, err := gateway.NewRecordStore(cfg.RecordsDir())
	if err != nil {
		hist.Close()
		auditLog.Close()
		return nil, err
	}

	var allowlist *delivery.Allowlist
	if cfg.Allowlist != "" {
		allowlist, err = delivery.LoadAllowlist(cfg.Allowlist)
		if err != nil {
			hist.Close()
			auditLog.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	outbox, err := delivery.NewOutbox(cfg.OutboxDir(), allowlist)
	if err != nil {
		hist.Close()
		auditLog.Close()
		return nil, err
	}

	dnc, err := suppress.Load(cfg.SuppressionPath())
	if err != nil {
		hist.Close()
		auditLog.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	gw := gateway.New(ctrl, safeguard.NewEvaluator(hist, hist), records, hist, auditLog, outbox, gateway.Config{
		DeliveryTimeout: cfg.DeliveryTimeout,
		ApprovalTTL:     cfg.ApprovalTTL,
		ConfigHash:      configHash,
		Suppression:     dnc,
	})

	return &Engine{
		Config:     cfg,
		ConfigHash: configHash,
		Audit:      auditLog,
		History:    hist,
		Records:    records,
		Controller: ctrl,
		Gateway:    gw,
		statePath:  cfg.StatePath(),
	}, nil
}

func restoreController(cfg *config.Config, table policy.LevelTable, sink policy.AuditSink) (*policy.Controller, error) {
	data, err := os.ReadFile(cfg.StatePath())
	if err == nil {
		var st policy.State
		if jerr := json.Unmarshal(data, &st); jerr == nil && st.Level.Valid() {
			return policy.NewControllerFromState(table, st, cfg.Operator, sink)
		}
		// Corrupt state file: fall through to fresh defaults rather
		// than refusing to start. The kill-switch resets to SAFE,
		// which is the fail-closed direction.
		fmt.Fprintf(os.Stderr, "warning: ignoring unreadable policy state at %s\n", cfg.StatePath())
	}
	return policy.NewController(table, policy.Level(cfg.InitialLevel), cfg.Operator, sink)
}

// SaveState persists the durable policy state for the next run.
// Called after every successful mode, kill-switch, or step-mode
// change.
func (e *Engine) SaveState() error {
	st := e.Controller.State()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal state: %w", err)
	}
	tmp := e.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("engine: write state: %w", err)
	}
	if err := os.Rename(tmp, e.statePath); err != nil {
		return fmt.Errorf("engine: commit state: %w", err)
	}
	return nil
}

// Close releases the history store and the audit log.
func (e *Engine) Close() error {
	var first error
	if err := e.History.Close(); err != nil {
		first = err
	}
	if err := e.Audit.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
