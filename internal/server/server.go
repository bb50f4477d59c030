// Package server runs the HTTP operator API: action submission, the
// approval queue, and the privileged policy controls, all backed by
// one wired engine. Config hot-reload swaps the engine atomically.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ppiankov/sendwatch/internal/engine"
	"github.com/ppiankov/sendwatch/internal/gateway"
	"github.com/ppiankov/sendwatch/internal/model"
	"github.com/ppiankov/sendwatch/internal/policy"
)

// Config holds server configuration.
type Config struct {
	Port       int
	ConfigPath string
}

// Server is the HTTP operator API.
type Server struct {
	cfg Config

	mu  sync.RWMutex
	eng *engine.Engine

	srv *http.Server
}

// New wires an engine from the config file and builds the server.
func New(cfg Config) (*Server, error) {
	eng, err := engine.Open(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, eng: eng}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/actions", s.handleSubmit)
	mux.HandleFunc("GET /v1/actions/pending", s.handlePending)
	mux.HandleFunc("GET /v1/actions/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/actions/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/actions/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /v1/actions/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /v1/mode", s.handleSetMode)
	mux.HandleFunc("POST /v1/killswitch", s.handleSetKillSwitch)
	mux.HandleFunc("POST /v1/stepmode", s.handleSetStepMode)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler exposes the mux for in-process tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cerr := s.eng.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Reload re-reads the config file and swaps in a freshly wired
// engine. Policy state survives via the persisted state file. On any
// error the old engine keeps serving. The write lock waits out
// in-flight handlers, so the old engine is only closed once nothing
// is using it.
func (s *Server) Reload() error {
	next, err := engine.Open(s.cfg.ConfigPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.eng
	s.eng = next
	s.mu.Unlock()

	return old.Close()
}

// engine pins the current engine for the duration of a request.
// The caller must invoke release when done; Reload blocks on these
// read locks before closing a swapped-out engine.
func (s *Server) engine() (eng *engine.Engine, release func()) {
	s.mu.RLock()
	return s.eng, s.mu.RUnlock
}

type submitRequest struct {
	ContactID string `json:"contact_id"`
	Company   string `json:"company"`
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Urgency   string `json:"urgency"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.ContactID == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("contact_id and body are required"))
		return
	}

	kind := model.ActionKind(req.Kind)
	if kind == "" {
		kind = model.KindSendMessage
	}

	eng, release := s.engine()
	defer release()
	rec, err := eng.Gateway.Process(r.Context(), model.ActionRequest{
		ContactID: req.ContactID,
		Company:   req.Company,
		Channel:   model.ParseChannel(req.Channel),
		Kind:      kind,
		Subject:   req.Subject,
		Body:      req.Body,
		Urgency:   req.Urgency,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine()
	defer release()
	list, err := eng.Gateway.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []model.ApprovalRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine()
	defer release()
	rec, err := eng.Gateway.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type decisionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	rec, err := eng.Gateway.Approve(r.Context(), r.PathValue("id"), req.Actor)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	rec, err := eng.Gateway.Reject(r.PathValue("id"), req.Actor, req.Reason)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type confirmRequest struct {
	Actor   string          `json:"actor"`
	Preview gateway.Preview `json:"preview"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	rec, err := eng.Gateway.Confirm(r.Context(), r.PathValue("id"), req.Actor, req.Preview)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type modeRequest struct {
	Actor string `json:"actor"`
	Level int    `json:"level"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	change, err := eng.Controller.SetMode(policy.Level(req.Level), req.Actor)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := eng.SaveState(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"previous":   int(change.Previous),
		"current":    int(change.Current),
		"parameters": change.Parameters,
	})
}

type killSwitchRequest struct {
	Actor string `json:"actor"`
	State string `json:"state"`
}

func (s *Server) handleSetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	if err := eng.Controller.SetKillSwitch(model.KillSwitch(req.State), req.Actor); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := eng.SaveState(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, eng.Controller.Snapshot())
}

type stepModeRequest struct {
	Actor   string `json:"actor"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleSetStepMode(w http.ResponseWriter, r *http.Request) {
	var req stepModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	eng, release := s.engine()
	defer release()
	if err := eng.Controller.SetStepMode(req.Enabled, req.Actor); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := eng.SaveState(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, eng.Controller.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine()
	defer release()
	snap := eng.Controller.Snapshot()

	pending, err := eng.Gateway.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sentToday, err := eng.History.CountAllSince(startOfDay(time.Now().UTC()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"level":       int(snap.Level),
		"level_name":  policy.LevelName(snap.Level),
		"kill_switch": snap.KillSwitch,
		"step_mode":   snap.StepMode,
		"version":     strconv.FormatUint(snap.Version, 10),
		"config_hash": eng.ConfigHash,
		"sent_today":  sentToday,
		"daily_cap":   snap.Parameters.DailyOutreachCap,
		"pending":     len(pending),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, policy.ErrInvalidMode),
		errors.Is(err, gateway.ErrReasonRequired),
		errors.Is(err, gateway.ErrPreviewMismatch):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotPending),
		errors.Is(err, gateway.ErrNotApproved),
		errors.Is(err, gateway.ErrTerminalState),
		errors.Is(err, gateway.ErrApprovalExpired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
