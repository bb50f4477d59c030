package safeguard

import (
	"fmt"
	"time"

	"github.com/ppiankov/sendwatch/internal/model"
	"github.com/ppiankov/sendwatch/internal/policy"
)

// OutreachHistory supplies rolling-window counts over prior sends.
// Read-only from the evaluator's point of view.
type OutreachHistory interface {
	CountContactSince(contactID string, since time.Time) (int, error)
	CountCompanySince(company string, since time.Time) (int, error)
	CountAllSince(since time.Time) (int, error)
	LastOutreachAt(contactID string) (time.Time, bool, error)
}

// EngagementHistory supplies positive engagement events per contact.
type EngagementHistory interface {
	PositiveEvents(contactID string, since time.Time) ([]model.EngagementEvent, error)
}

const (
	week             = 7 * 24 * time.Hour
	overcommWindow   = 30 * 24 * time.Hour
	engagementWindow = 90 * 24 * time.Hour

	// engagementCeiling normalizes the decayed engagement score into
	// [0,1]: a contact with 5.0 of weighted positive signal counts as
	// fully engaged.
	engagementCeiling = 5.0

	// decayFloor keeps long-dormant contacts from decaying to zero.
	decayFloor = 0.1
)

// Evaluator runs the frequency, spacing, volume, decay, and
// overcommunication checks against outreach history.
type Evaluator struct {
	outreach   OutreachHistory
	engagement EngagementHistory
}

// NewEvaluator creates an Evaluator over the given stores.
func NewEvaluator(outreach OutreachHistory, engagement EngagementHistory) *Evaluator {
	return &Evaluator{outreach: outreach, engagement: engagement}
}

// Evaluate runs every check and returns the full picture: all
// blocking violations plus all advisory recommendations. Checks do
// not short-circuit. A store error aborts the evaluation — the
// caller must treat that as a blocking outcome, never as a pass.
//
// Check order:
//  1. Per-contact weekly cap
//  2. Per-company weekly cap
//  3. Minimum spacing since last contact message
//  4. Daily global cap (current UTC calendar day)
//  5. Engagement decay (advisory only)
//  6. Overcommunication risk (violation only at high severity)
func (e *Evaluator) Evaluate(req model.ActionRequest, params policy.Parameters, now time.Time) (model.SafeguardVerdict, error) {
	var verdict model.SafeguardVerdict

	weekAgo := now.Add(-week)

	// 1. Per-contact weekly cap
	contactCount, err := e.outreach.CountContactSince(req.ContactID, weekAgo)
	if err != nil {
		return verdict, fmt.Errorf("safeguard: count contact outreach: %w", err)
	}
	if contactCount >= params.MaxMessagesPerContactPerWeek {
		verdict.Violations = append(verdict.Violations, model.Violation{
			Type:     model.ViolationContactFrequency,
			Severity: model.SeverityHigh,
			Message: fmt.Sprintf("contact %s already received %d message(s) in the last 7 days (limit %d)",
				req.ContactID, contactCount, params.MaxMessagesPerContactPerWeek),
		})
	}

	// 2. Per-company weekly cap
	if req.Company != "" {
		companyCount, err := e.outreach.CountCompanySince(req.Company, weekAgo)
		if err != nil {
			return verdict, fmt.Errorf("safeguard: count company outreach: %w", err)
		}
		if companyCount >= params.MaxMessagesPerCompanyPerWeek {
			verdict.Violations = append(verdict.Violations, model.Violation{
				Type:     model.ViolationCompanyFrequency,
				Severity: model.SeverityHigh,
				Message: fmt.Sprintf("company %s already received %d message(s) in the last 7 days (limit %d)",
					req.Company, companyCount, params.MaxMessagesPerCompanyPerWeek),
			})
		}
	}

	// 3. Minimum spacing
	last, haveLast, err := e.outreach.LastOutreachAt(req.ContactID)
	if err != nil {
		return verdict, fmt.Errorf("safeguard: last outreach: %w", err)
	}
	if haveLast {
		daysSince := now.Sub(last).Hours() / 24
		if daysSince < float64(params.MinDaysBetweenContactMessages) {
			verdict.Violations = append(verdict.Violations, model.Violation{
				Type:     model.ViolationInsufficientSpacing,
				Severity: model.SeverityMedium,
				Message: fmt.Sprintf("last message to %s was %.1f day(s) ago, minimum spacing is %d day(s)",
					req.ContactID, daysSince, params.MinDaysBetweenContactMessages),
			})
		}
	}

	// 4. Daily global cap
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dailyCount, err := e.outreach.CountAllSince(dayStart)
	if err != nil {
		return verdict, fmt.Errorf("safeguard: count daily outreach: %w", err)
	}
	if dailyCount >= params.DailyOutreachCap {
		verdict.Violations = append(verdict.Violations, model.Violation{
			Type:     model.ViolationDailyCapReached,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("daily outreach cap reached: %d/%d sent today", dailyCount, params.DailyOutreachCap),
		})
	}

	// 5. Engagement decay — advisory, never blocking. First-touch
	// contacts have nothing to decay, so the check only applies once
	// there is prior outreach on file.
	if haveLast {
		score, err := e.engagementScore(req.ContactID, now)
		if err != nil {
			return verdict, fmt.Errorf("safeguard: engagement score: %w", err)
		}
		if score < params.EngagementDecayThreshold {
			verdict.Recommendations = append(verdict.Recommendations,
				fmt.Sprintf("engagement with %s has decayed (score %.2f below threshold %.2f), consider altering approach instead of repeating it",
					req.ContactID, score, params.EngagementDecayThreshold))
		}
	}

	// 6. Overcommunication risk
	if params.OvercommunicationDetection {
		if err := e.checkOvercommunication(req.ContactID, now, &verdict); err != nil {
			return verdict, err
		}
	}

	verdict.Passed = len(verdict.Violations) == 0
	return verdict, nil
}

// engagementScore computes the normalized decayed engagement score:
// (weighted sum of positive events) × max(0.1, 1 − 0.05×daysSinceLast),
// scaled into [0,1] by the engagement ceiling.
func (e *Evaluator) engagementScore(contactID string, now time.Time) (float64, error) {
	events, err := e.engagement.PositiveEvents(contactID, now.Add(-engagementWindow))
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var sum float64
	var lastPositive time.Time
	for _, ev := range events {
		w := ev.Weight
		if w <= 0 {
			w = 1
		}
		sum += w
		if ev.OccurredAt.After(lastPositive) {
			lastPositive = ev.OccurredAt
		}
	}

	daysSince := now.Sub(lastPositive).Hours() / 24
	factor := 1 - 0.05*daysSince
	if factor < decayFloor {
		factor = decayFloor
	}

	score := sum * factor / engagementCeiling
	if score > 1 {
		score = 1
	}
	return score, nil
}

// checkOvercommunication flags contacts that keep receiving messages
// without responding. High risk blocks; medium is advisory.
func (e *Evaluator) checkOvercommunication(contactID string, now time.Time, verdict *model.SafeguardVerdict) error {
	since := now.Add(-overcommWindow)

	total, err := e.outreach.CountContactSince(contactID, since)
	if err != nil {
		return fmt.Errorf("safeguard: count 30-day outreach: %w", err)
	}
	if total == 0 {
		return nil
	}

	positives, err := e.engagement.PositiveEvents(contactID, since)
	if err != nil {
		return fmt.Errorf("safeguard: count 30-day engagements: %w", err)
	}
	responseRate := float64(len(positives)) / float64(total)

	switch {
	case total > 5 && responseRate < 0.1:
		verdict.Violations = append(verdict.Violations, model.Violation{
			Type:     model.ViolationOvercommunication,
			Severity: model.SeverityHigh,
			Message: fmt.Sprintf("%d messages to %s in 30 days with %.0f%% response rate — overcommunication",
				total, contactID, responseRate*100),
		})
	case total > 3 && responseRate < 0.2:
		verdict.Recommendations = append(verdict.Recommendations,
			fmt.Sprintf("response rate for %s is %.0f%% over %d messages in 30 days — consider spacing out outreach",
				contactID, responseRate*100, total))
	}
	return nil
}
