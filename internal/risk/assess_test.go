package risk

import (
	"reflect"
	"testing"

	"github.com/ppiankov/sendwatch/internal/model"
)

func hasFinding(a model.RiskAssessment, category string) bool {
	for _, f := range a.Findings {
		if f.Category == category {
			return true
		}
	}
	return false
}

func TestPlainMessageIsRiskFree(t *testing.T) {
	a := Assess(model.ActionRequest{
		ContactID: "jane@acme.test",
		Kind:      model.KindSendMessage,
		Subject:   "Lunch next week?",
		Body:      "Would Tuesday work for a quick catch-up?",
	})

	if a.OverallRisk != model.SeverityNone {
		t.Errorf("overall = %q, want none (findings: %v)", a.OverallRisk, a.Findings)
	}
	if !a.SafeToAutoExecute {
		t.Error("risk-free action must be safe to auto-execute")
	}
}

func TestDestructiveOperationIsCritical(t *testing.T) {
	a := Assess(model.ActionRequest{
		ContactID: "crm",
		Kind:      model.KindExecuteQuery,
		Body:      "DELETE FROM contacts WHERE last_touch < '2024-01-01'",
	})

	if a.OverallRisk != model.SeverityCritical {
		t.Errorf("overall = %q, want critical", a.OverallRisk)
	}
	if a.SafeToAutoExecute {
		t.Error("destructive operation must never be safe to auto-execute")
	}
	if !hasFinding(a, CategoryDestructiveOperation) {
		t.Errorf("missing %s finding: %v", CategoryDestructiveOperation, a.Findings)
	}
	if a.Recommendation == "" {
		t.Error("critical assessment must carry an operator recommendation")
	}
}

func TestDropTableIsCritical(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindModifyData,
		Body: "drop table outreach_log",
	})
	if a.OverallRisk != model.SeverityCritical {
		t.Errorf("overall = %q, want critical", a.OverallRisk)
	}
}

func TestDataModificationIsHigh(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindModifyData,
		Body: "UPDATE contacts SET stage = 'won' WHERE id = 42",
	})

	if a.OverallRisk != model.SeverityHigh {
		t.Errorf("overall = %q, want high", a.OverallRisk)
	}
	if a.SafeToAutoExecute {
		t.Error("high risk must not auto-execute")
	}
}

func TestUnboundedReadIsMedium(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindExecuteQuery,
		Body: "SELECT * FROM contacts",
	})

	if a.OverallRisk != model.SeverityMedium {
		t.Errorf("overall = %q, want medium", a.OverallRisk)
	}
	if !hasFinding(a, CategoryUnboundedRead) {
		t.Errorf("missing %s finding", CategoryUnboundedRead)
	}
	// Medium risk is still auto-executable.
	if !a.SafeToAutoExecute {
		t.Error("medium risk is within the auto-execute boundary")
	}
}

func TestBoundedReadIsClean(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindExecuteQuery,
		Body: "SELECT name FROM contacts ORDER BY last_touch DESC LIMIT 20",
	})

	if hasFinding(a, CategoryUnboundedRead) {
		t.Error("query with LIMIT must not flag unbounded read")
	}
}

func TestCredentialReferenceIsHigh(t *testing.T) {
	a := Assess(model.ActionRequest{
		ContactID: "jane@acme.test",
		Kind:      model.KindSendMessage,
		Body:      "Here is the API_KEY you asked for: sk-...",
	})

	if a.OverallRisk != model.SeverityHigh {
		t.Errorf("overall = %q, want high", a.OverallRisk)
	}
	if !hasFinding(a, CategorySensitiveData) {
		t.Errorf("missing %s finding", CategorySensitiveData)
	}
}

// Message bodies that merely mention deleting something are not data
// operations.
func TestSendMessageNeverDestructive(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindSendMessage,
		Body: "Feel free to delete my earlier email, the new deck is attached.",
	})

	if hasFinding(a, CategoryDestructiveOperation) {
		t.Error("send_message payloads must not match destructive-operation rules")
	}
}

// All rules run: a destructive query touching credentials carries
// both findings, with overall folded to the max.
func TestAllRulesEvaluated(t *testing.T) {
	a := Assess(model.ActionRequest{
		Kind: model.KindExecuteQuery,
		Body: "DELETE FROM secrets WHERE token IS NOT NULL",
	})

	if !hasFinding(a, CategoryDestructiveOperation) || !hasFinding(a, CategorySensitiveData) {
		t.Errorf("expected both findings, got %v", a.Findings)
	}
	if a.OverallRisk != model.SeverityCritical {
		t.Errorf("overall = %q, want critical", a.OverallRisk)
	}
}

func TestAssessIsDeterministic(t *testing.T) {
	req := model.ActionRequest{
		Kind: model.KindExecuteQuery,
		Body: "update sessions set token = null",
	}
	first := Assess(req)
	second := Assess(req)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("assessments differ:\n  first:  %+v\n  second: %+v", first, second)
	}
}
