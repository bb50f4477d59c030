package safeguard

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ppiankov/sendwatch/internal/model"
	"github.com/ppiankov/sendwatch/internal/policy"
)

// memHistory is an in-memory stand-in for the history store.
type memHistory struct {
	outreach    []model.OutreachRecord
	engagements []model.EngagementEvent
	err         error
}

func (m *memHistory) CountContactSince(contactID string, since time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range m.outreach {
		if r.ContactID == contactID && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memHistory) CountCompanySince(company string, since time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range m.outreach {
		if r.Company == company && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memHistory) CountAllSince(since time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range m.outreach {
		if !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memHistory) LastOutreachAt(contactID string) (time.Time, bool, error) {
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	var last time.Time
	found := false
	for _, r := range m.outreach {
		if r.ContactID == contactID && r.SentAt.After(last) {
			last = r.SentAt
			found = true
		}
	}
	return last, found, nil
}

func (m *memHistory) PositiveEvents(contactID string, since time.Time) ([]model.EngagementEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	var events []model.EngagementEvent
	for _, ev := range m.engagements {
		if ev.ContactID == contactID && ev.Positive && !ev.OccurredAt.Before(since) {
			events = append(events, ev)
		}
	}
	return events, nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func balancedParams(t *testing.T) policy.Parameters {
	t.Helper()
	params, err := policy.DefaultLevels().ForLevel(3)
	if err != nil {
		t.Fatalf("level table: %v", err)
	}
	return params
}

func testRequest() model.ActionRequest {
	return model.ActionRequest{
		ContactID: "jane@acme.test",
		Company:   "acme.test",
		Channel:   model.ChannelEmail,
		Kind:      model.KindSendMessage,
		Subject:   "Quick question",
		Body:      "Hi Jane, following up on our chat.",
	}
}

func hasViolation(verdict model.SafeguardVerdict, typ string) bool {
	for _, v := range verdict.Violations {
		if v.Type == typ {
			return true
		}
	}
	return false
}

func TestCleanHistoryPasses(t *testing.T) {
	ev := NewEvaluator(&memHistory{}, &memHistory{})

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Errorf("expected pass with no history, got violations: %v", verdict.Violations)
	}
}

// Mode level 3 caps a contact at 1 message per week: a send from
// 2 days ago must violate the contact frequency check.
func TestContactWeeklyCapExceeded(t *testing.T) {
	hist := &memHistory{outreach: []model.OutreachRecord{
		{ContactID: "jane@acme.test", Company: "acme.test", Channel: model.ChannelEmail, SentAt: testNow.AddDate(0, 0, -2)},
	}}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Passed {
		t.Fatal("expected failure for contact over weekly cap")
	}
	if !hasViolation(verdict, model.ViolationContactFrequency) {
		t.Errorf("expected %s, got %v", model.ViolationContactFrequency, verdict.Violations)
	}
	// The same record is only 2 days back, so spacing (3 days at
	// level 3) is violated too — checks never short-circuit.
	if !hasViolation(verdict, model.ViolationInsufficientSpacing) {
		t.Errorf("expected %s alongside the cap violation", model.ViolationInsufficientSpacing)
	}
}

func TestCompanyWeeklyCap(t *testing.T) {
	var outreach []model.OutreachRecord
	for i := 0; i < 5; i++ {
		outreach = append(outreach, model.OutreachRecord{
			ContactID: "other@acme.test",
			Company:   "acme.test",
			Channel:   model.ChannelEmail,
			SentAt:    testNow.AddDate(0, 0, -1),
		})
	}
	hist := &memHistory{outreach: outreach}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !hasViolation(verdict, model.ViolationCompanyFrequency) {
		t.Errorf("expected %s, got %v", model.ViolationCompanyFrequency, verdict.Violations)
	}
}

func TestSpacingHonoredAfterGap(t *testing.T) {
	hist := &memHistory{outreach: []model.OutreachRecord{
		{ContactID: "jane@acme.test", Company: "acme.test", Channel: model.ChannelEmail, SentAt: testNow.AddDate(0, 0, -10)},
	}}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if hasViolation(verdict, model.ViolationInsufficientSpacing) {
		t.Error("10-day gap must satisfy 3-day minimum spacing")
	}
	if hasViolation(verdict, model.ViolationContactFrequency) {
		t.Error("10-day-old send is outside the weekly window")
	}
}

func TestDailyGlobalCap(t *testing.T) {
	var outreach []model.OutreachRecord
	for i := 0; i < 10; i++ {
		outreach = append(outreach, model.OutreachRecord{
			ContactID: "bulk@elsewhere.test",
			Company:   "elsewhere.test",
			Channel:   model.ChannelEmail,
			SentAt:    testNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	hist := &memHistory{outreach: outreach}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !hasViolation(verdict, model.ViolationDailyCapReached) {
		t.Errorf("expected %s with 10/10 sent today, got %v", model.ViolationDailyCapReached, verdict.Violations)
	}
}

func TestEngagementDecayIsAdvisoryOnly(t *testing.T) {
	hist := &memHistory{
		outreach: []model.OutreachRecord{
			{ContactID: "jane@acme.test", Company: "acme.test", Channel: model.ChannelEmail, SentAt: testNow.AddDate(0, 0, -20)},
		},
		engagements: []model.EngagementEvent{
			// One weak positive signal 40 days back: decayed well
			// below the 0.6 threshold.
			{ContactID: "jane@acme.test", Positive: true, Weight: 1, OccurredAt: testNow.AddDate(0, 0, -40)},
		},
	}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Passed {
		t.Fatalf("decay must never block, got violations: %v", verdict.Violations)
	}
	if len(verdict.Recommendations) == 0 {
		t.Error("expected a decay recommendation")
	}
}

func TestFreshEngagementNoRecommendation(t *testing.T) {
	hist := &memHistory{
		outreach: []model.OutreachRecord{
			{ContactID: "jane@acme.test", Company: "acme.test", Channel: model.ChannelEmail, SentAt: testNow.AddDate(0, 0, -5)},
		},
		engagements: []model.EngagementEvent{
			{ContactID: "jane@acme.test", Positive: true, Weight: 3, OccurredAt: testNow.AddDate(0, 0, -1)},
			{ContactID: "jane@acme.test", Positive: true, Weight: 2, OccurredAt: testNow.AddDate(0, 0, -2)},
		},
	}
	ev := NewEvaluator(hist, hist)

	verdict, err := ev.Evaluate(testRequest(), balancedParams(t), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, r := range verdict.Recommendations {
		t.Errorf("unexpected recommendation: %s", r)
	}
}

func TestOvercommunicationHighBlocks(t *testing.T) {
	var outreach []model.OutreachRecord
	for i := 0; i < 6; i++ {
		outreach = append(outreach, model.OutreachRecord{
			ContactID: "jane@acme.test",
			Company:   "acme.test",
			Channel:   model.ChannelEmail,
			SentAt:    testNow.AddDate(0, 0, -(i*4 + 8)), // outside weekly window
		})
	}
	hist := &memHistory{outreach: outreach}
	ev := NewEvaluator(hist, hist)

	params := balancedParams(t)
	params.MinDaysBetweenContactMessages = 0 // isolate the overcomm check

	verdict, err := ev.Evaluate(testRequest(), params, testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !hasViolation(verdict, model.ViolationOvercommunication) {
		t.Errorf("6 messages, 0 replies in 30 days must be a high-risk violation, got %v", verdict.Violations)
	}
}

func TestOvercommunicationMediumIsAdvisory(t *testing.T) {
	var outreach []model.OutreachRecord
	for i := 0; i < 4; i++ {
		outreach = append(outreach, model.OutreachRecord{
			ContactID: "jane@acme.test",
			Company:   "acme.test",
			Channel:   model.ChannelEmail,
			SentAt:    testNow.AddDate(0, 0, -(i*5 + 8)),
		})
	}
	hist := &memHistory{outreach: outreach}
	ev := NewEvaluator(hist, hist)

	params := balancedParams(t)
	params.MinDaysBetweenContactMessages = 0

	verdict, err := ev.Evaluate(testRequest(), params, testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if hasViolation(verdict, model.ViolationOvercommunication) {
		t.Error("4 messages must not reach the high-risk violation")
	}
	if len(verdict.Recommendations) == 0 {
		t.Error("expected a medium-risk overcommunication recommendation")
	}
}

func TestOvercommunicationDisabledByPolicy(t *testing.T) {
	var outreach []model.OutreachRecord
	for i := 0; i < 6; i++ {
		outreach = append(outreach, model.OutreachRecord{
			ContactID: "jane@acme.test",
			Company:   "acme.test",
			Channel:   model.ChannelEmail,
			SentAt:    testNow.AddDate(0, 0, -(i*4 + 8)),
		})
	}
	hist := &memHistory{outreach: outreach}
	ev := NewEvaluator(hist, hist)

	params := balancedParams(t)
	params.MinDaysBetweenContactMessages = 0
	params.OvercommunicationDetection = false

	verdict, err := ev.Evaluate(testRequest(), params, testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if hasViolation(verdict, model.ViolationOvercommunication) {
		t.Error("overcommunication check must be skipped when disabled")
	}
}

func TestStoreErrorFailsEvaluation(t *testing.T) {
	hist := &memHistory{err: errors.New("connection refused")}
	ev := NewEvaluator(hist, hist)

	if _, err := ev.Evaluate(testRequest(), balancedParams(t), testNow); err == nil {
		t.Fatal("expected error when the history store fails")
	}
}

// Two evaluations over identical inputs must yield identical verdicts.
func TestEvaluateIsIdempotent(t *testing.T) {
	hist := &memHistory{outreach: []model.OutreachRecord{
		{ContactID: "jane@acme.test", Company: "acme.test", Channel: model.ChannelEmail, SentAt: testNow.AddDate(0, 0, -2)},
	}}
	ev := NewEvaluator(hist, hist)
	params := balancedParams(t)

	first, err := ev.Evaluate(testRequest(), params, testNow)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	second, err := ev.Evaluate(testRequest(), params, testNow)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("verdicts differ:\n  first:  %+v\n  second: %+v", first, second)
	}
}
