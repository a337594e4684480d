package policy

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func treatmentRule() *Rule {
	return &Rule{
		ID:                  uuid.New(),
		AllowedPurposeCodes: []string{"TREAT", "ETREAT"},
		MaxDurationSeconds:  3600,
		MaxAccessLevel:      AccessReadFull,
		Active:              true,
	}
}

func TestEvaluate_NoMatchingPolicy(t *testing.T) {
	req := EvaluationRequest{PurposeCode: "RESEARCH", RequestedDuration: time.Hour, AccessLevel: AccessReadSummary}
	d := Evaluate(req, []*Rule{treatmentRule()})
	if d.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", d.Outcome)
	}
	if d.Reason != ReasonNoMatchingPolicy {
		t.Errorf("expected %s, got %s", ReasonNoMatchingPolicy, d.Reason)
	}
}

func TestEvaluate_Approved(t *testing.T) {
	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: 30 * time.Minute, AccessLevel: AccessReadSummary}
	d := Evaluate(req, []*Rule{treatmentRule()})
	if d.Outcome != OutcomeApproved {
		t.Fatalf("expected approved, got %s (%s)", d.Outcome, d.Reason)
	}
	if d.EffectiveDuration != 30*time.Minute {
		t.Errorf("expected duration unchanged, got %v", d.EffectiveDuration)
	}
}

func TestEvaluate_ClampsDuration(t *testing.T) {
	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: 48 * time.Hour, AccessLevel: AccessReadFull}
	d := Evaluate(req, []*Rule{treatmentRule()})
	if d.Outcome != OutcomeApproved {
		t.Fatalf("expected approved (duration is advisory), got %s", d.Outcome)
	}
	if d.EffectiveDuration != time.Hour {
		t.Errorf("expected duration clamped to 1h, got %v", d.EffectiveDuration)
	}
}

func TestEvaluate_AccessLevelTooHigh(t *testing.T) {
	rule := treatmentRule()
	rule.MaxAccessLevel = AccessReadSummary
	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: time.Minute, AccessLevel: AccessReadFull}
	d := Evaluate(req, []*Rule{rule})
	if d.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", d.Outcome)
	}
	if d.Reason != ReasonAccessLevelExceeded {
		t.Errorf("expected %s, got %s", ReasonAccessLevelExceeded, d.Reason)
	}
}

func TestEvaluate_ManualApproval(t *testing.T) {
	rule := treatmentRule()
	rule.RequiresManualApproval = true
	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: time.Minute, AccessLevel: AccessReadSummary}
	d := Evaluate(req, []*Rule{rule})
	if d.Outcome != OutcomePending {
		t.Fatalf("expected pending, got %s", d.Outcome)
	}
	if d.Reason != ReasonManualApprovalRequired {
		t.Errorf("expected %s, got %s", ReasonManualApprovalRequired, d.Reason)
	}
}

func TestEvaluate_FirstMatchingRuleWins(t *testing.T) {
	strict := treatmentRule()
	strict.MaxAccessLevel = AccessReadSummary
	loose := treatmentRule()

	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: time.Minute, AccessLevel: AccessReadFull}
	d := Evaluate(req, []*Rule{strict, loose})
	if d.Outcome != OutcomeRejected {
		t.Errorf("expected first rule (strict) to apply, got %s", d.Outcome)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	rules := []*Rule{treatmentRule()}
	req := EvaluationRequest{PurposeCode: "TREAT", RequestedDuration: 2 * time.Hour, AccessLevel: AccessReadFull}
	first := Evaluate(req, rules)
	for i := 0; i < 10; i++ {
		if got := Evaluate(req, rules); got != first {
			t.Fatalf("evaluation not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestParseAccessLevel(t *testing.T) {
	if lvl, ok := ParseAccessLevel(""); !ok || lvl != AccessReadSummary {
		t.Errorf("empty input should default to read-summary")
	}
	if _, ok := ParseAccessLevel("read-everything"); ok {
		t.Errorf("unknown level should not parse")
	}
}
