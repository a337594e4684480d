package policy

import (
	"time"
)

// Outcome is the result category of a policy evaluation.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomePending  Outcome = "pending"
)

// Decision reason codes surfaced to requesters.
const (
	ReasonNoMatchingPolicy       = "NO_MATCHING_POLICY"
	ReasonAccessLevelExceeded    = "ACCESS_LEVEL_EXCEEDED"
	ReasonManualApprovalRequired = "MANUAL_APPROVAL_REQUIRED"
)

// EvaluationRequest is the subset of a grant request the evaluator needs.
type EvaluationRequest struct {
	PurposeCode       string
	RequestedDuration time.Duration
	AccessLevel       AccessLevel
}

// Decision is the deterministic result of evaluating a request against the
// active rule set. EffectiveDuration carries the (possibly clamped) duration
// the grant should be created with; it is set for approved and pending
// outcomes.
type Decision struct {
	Outcome           Outcome
	Reason            string
	EffectiveDuration time.Duration
}

// Evaluate decides whether a proposed grant's terms are permissible under the
// active policy rules. It is pure: the same inputs always produce the same
// decision.
//
// The first rule (in repository order) covering the request's purpose code
// applies. No covering rule rejects the request. A requested duration above
// the rule's ceiling is clamped rather than rejected; an access level above
// the rule's ceiling is rejected. Rules flagged for manual approval defer the
// final call to a human, who later drives the same approve/reject transition
// API.
func Evaluate(req EvaluationRequest, rules []*Rule) Decision {
	var matched *Rule
	for _, r := range rules {
		if r.AllowsPurpose(req.PurposeCode) {
			matched = r
			break
		}
	}
	if matched == nil {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonNoMatchingPolicy}
	}

	if req.AccessLevel.Exceeds(matched.MaxAccessLevel) {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonAccessLevelExceeded}
	}

	effective := req.RequestedDuration
	if max := matched.MaxDuration(); max > 0 && effective > max {
		effective = max
	}

	if matched.RequiresManualApproval {
		return Decision{
			Outcome:           OutcomePending,
			Reason:            ReasonManualApprovalRequired,
			EffectiveDuration: effective,
		}
	}

	return Decision{Outcome: OutcomeApproved, EffectiveDuration: effective}
}
