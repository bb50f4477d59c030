// Package risk classifies action payloads against an explicit,
// ordered rule table. It is deliberately independent of the safeguard
// evaluator: safeguards judge volume and frequency, risk judges
// content and operation danger.
package risk

import "github.com/ppiankov/sendwatch/internal/model"

// Assess runs every rule against the request and folds the findings
// into an overall risk. Deterministic: identical requests always
// yield identical assessments.
//
// SafeToAutoExecute is true iff overall risk is medium or below;
// critical findings can therefore never auto-send regardless of
// kill-switch or mode.
func Assess(req model.ActionRequest) model.RiskAssessment {
	assessment := model.RiskAssessment{OverallRisk: model.SeverityNone}

	for _, r := range rules {
		if !r.match(req) {
			continue
		}
		assessment.Findings = append(assessment.Findings, model.RiskFinding{
			Category: r.category,
			Severity: r.severity,
			Message:  describe(r, req),
		})
		assessment.OverallRisk = model.MaxSeverity(assessment.OverallRisk, r.severity)
	}

	assessment.SafeToAutoExecute = model.SeverityRank[assessment.OverallRisk] <= model.SeverityRank[model.SeverityMedium]
	assessment.Recommendation = recommendationFor(assessment.OverallRisk)
	return assessment
}
