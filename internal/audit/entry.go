package audit

import "github.com/ppiankov/sendwatch/internal/model"

// Entry kinds. Every operator mutation and every record transition
// produces exactly one entry.
const (
	KindModeChange       = "mode_change"
	KindKillSwitchChange = "killswitch_change"
	KindStepModeChange   = "stepmode_change"
	KindDecision         = "decision"
	KindTransition       = "transition"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs or scalars (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`

	RecordID  string `json:"record_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
	Company   string `json:"company,omitempty"`

	Actor    string `json:"actor,omitempty"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`

	// Reason is advisory display text; control flow never branches on it.
	Reason string `json:"reason,omitempty"`

	PolicyVersion uint64 `json:"policy_version,omitempty"`
	ConfigHash    string `json:"config_hash,omitempty"`

	Safeguard *model.SafeguardVerdict `json:"safeguard,omitempty"`
	Risk      *model.RiskAssessment   `json:"risk,omitempty"`

	PrevHash string `json:"prev_hash"`
}
