package risk

import (
	"regexp"
	"strings"

	"github.com/ppiankov/sendwatch/internal/model"
)

// rule is one entry in the ordered classification table. All rules
// are evaluated against every request — no short-circuit — so the
// assessment always carries the complete set of findings.
type rule struct {
	category string
	severity model.Severity
	message  string
	match    func(req model.ActionRequest) bool
}

// Risk categories.
const (
	CategoryDestructiveOperation = "destructive_operation"
	CategoryDataModification     = "data_modification"
	CategoryUnboundedRead        = "unbounded_read"
	CategorySensitiveData        = "sensitive_data"
)

var (
	destructiveRe = regexp.MustCompile(`(?i)\b(delete|drop|truncate|purge|destroy|wipe)\b`)
	modifyingRe   = regexp.MustCompile(`(?i)\b(update|insert|upsert|alter|merge)\b`)
	selectRe      = regexp.MustCompile(`(?i)\bselect\b`)
	limitRe       = regexp.MustCompile(`(?i)\b(limit|top|fetch\s+first)\b`)
	sensitiveRe   = regexp.MustCompile(`(?i)\b(password|passwd|token|secret|api[_-]?key|credential|private[_-]?key)\b`)
)

// rules is evaluated in order. Order matters only for finding
// presentation; overall risk is the max severity across matches.
var rules = []rule{
	{
		category: CategoryDestructiveOperation,
		severity: model.SeverityCritical,
		message:  "payload contains a destructive data operation",
		match: func(req model.ActionRequest) bool {
			if req.Kind == model.KindSendMessage {
				return false
			}
			return destructiveRe.MatchString(req.Body)
		},
	},
	{
		category: CategoryDataModification,
		severity: model.SeverityHigh,
		message:  "payload contains a data-modifying operation",
		match: func(req model.ActionRequest) bool {
			if req.Kind != model.KindModifyData && req.Kind != model.KindExecuteQuery {
				return false
			}
			return modifyingRe.MatchString(req.Body)
		},
	},
	{
		category: CategoryUnboundedRead,
		severity: model.SeverityMedium,
		message:  "query has no row limit — unbounded reads are a performance risk",
		match: func(req model.ActionRequest) bool {
			if req.Kind != model.KindExecuteQuery {
				return false
			}
			return selectRe.MatchString(req.Body) && !limitRe.MatchString(req.Body)
		},
	},
	{
		category: CategorySensitiveData,
		severity: model.SeverityHigh,
		message:  "payload references credential-like or sensitive-field identifiers",
		match: func(req model.ActionRequest) bool {
			return sensitiveRe.MatchString(req.Body) || sensitiveRe.MatchString(req.Subject)
		},
	},
}

// recommendationFor maps overall risk to the operator display string.
// Advisory only — nothing branches on it.
func recommendationFor(overall model.Severity) string {
	switch overall {
	case model.SeverityCritical:
		return "do not execute — destructive operation requires explicit operator sign-off"
	case model.SeverityHigh:
		return "review carefully before approving"
	case model.SeverityMedium:
		return "review recommended"
	case model.SeverityLow:
		return "low risk"
	default:
		return ""
	}
}

// describe renders a finding message with the matched kind for
// operator display.
func describe(r rule, req model.ActionRequest) string {
	return r.message + " (" + strings.ReplaceAll(string(req.Kind), "_", " ") + ")"
}
