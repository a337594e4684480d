// Package revocation maps external safety signals to grant revocations. A
// signal names a scope (one contract, a requester, or a patient-requester
// pair); the trigger resolves the scope to concrete grants and drives each
// through the normal revoke transition.
package revocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/emr/consent/internal/domain/grant"
)

// SignalType classifies the external event prompting revocation.
type SignalType string

const (
	SignalPatientWithdrawal  SignalType = "patient_withdrawal"
	SignalBreachReport       SignalType = "breach_report"
	SignalSuspiciousActivity SignalType = "suspicious_activity"
	SignalPolicyViolation    SignalType = "policy_violation"
)

// Signal is one revocation request. Which identifier fields are required
// depends on the type: patient withdrawal names a single contract, a breach
// report or policy violation names a requester, and suspicious activity
// names a patient-requester pair.
type Signal struct {
	Type        SignalType `json:"type"`
	ContractID  *uuid.UUID `json:"contractId,omitempty"`
	PatientID   *uuid.UUID `json:"patientId,omitempty"`
	RequesterID *uuid.UUID `json:"requesterId,omitempty"`
	Actor       string     `json:"actor"`
	Detail      string     `json:"detail,omitempty"`
}

// Validate checks that the signal carries the identifiers its type requires.
func (s *Signal) Validate() error {
	if s.Actor == "" {
		return &grant.ValidationError{Field: "actor", Msg: "is required"}
	}
	switch s.Type {
	case SignalPatientWithdrawal:
		if s.ContractID == nil {
			return &grant.ValidationError{Field: "contractId", Msg: "is required for patient_withdrawal"}
		}
	case SignalBreachReport, SignalPolicyViolation:
		if s.RequesterID == nil {
			return &grant.ValidationError{Field: "requesterId", Msg: fmt.Sprintf("is required for %s", s.Type)}
		}
	case SignalSuspiciousActivity:
		if s.PatientID == nil || s.RequesterID == nil {
			return &grant.ValidationError{Field: "patientId/requesterId", Msg: "both are required for suspicious_activity"}
		}
	default:
		return &grant.ValidationError{Field: "type", Msg: fmt.Sprintf("unknown signal type %q", s.Type)}
	}
	return nil
}

func (s *Signal) reason() string {
	if s.Detail != "" {
		return fmt.Sprintf("%s: %s", s.Type, s.Detail)
	}
	return string(s.Type)
}

// Trigger resolves signals to grants and revokes them.
type Trigger struct {
	svc   *grant.Service
	store grant.ContractStore
}

func NewTrigger(svc *grant.Service, store grant.ContractStore) *Trigger {
	return &Trigger{svc: svc, store: store}
}

// HandleSignal revokes every approved grant in the signal's scope and
// returns how many revocations this call committed. Grants already terminal
// are skipped without error, so re-delivered signals are harmless.
func (t *Trigger) HandleSignal(ctx context.Context, sig *Signal) (int, error) {
	if err := sig.Validate(); err != nil {
		return 0, err
	}

	targets, err := t.resolve(ctx, sig)
	if err != nil {
		return 0, err
	}

	var revoked int
	for _, id := range targets {
		committed, err := t.svc.Revoke(ctx, id, sig.Actor, sig.reason())
		if err != nil {
			log.Error().Err(err).
				Str("grant_id", id.String()).
				Str("signal", string(sig.Type)).
				Msg("revocation failed")
			return revoked, fmt.Errorf("revoke grant %s: %w", id, err)
		}
		if committed {
			revoked++
		}
	}

	log.Info().
		Str("signal", string(sig.Type)).
		Str("actor", sig.Actor).
		Int("targets", len(targets)).
		Int("revoked", revoked).
		Msg("revocation signal handled")
	return revoked, nil
}

func (t *Trigger) resolve(ctx context.Context, sig *Signal) ([]uuid.UUID, error) {
	switch sig.Type {
	case SignalPatientWithdrawal:
		return []uuid.UUID{*sig.ContractID}, nil

	case SignalBreachReport, SignalPolicyViolation:
		grants, err := t.store.ListActiveForRequester(ctx, *sig.RequesterID)
		if err != nil {
			return nil, fmt.Errorf("resolve requester scope: %w", err)
		}
		return grantIDs(grants), nil

	case SignalSuspiciousActivity:
		grants, err := t.store.ListActiveForPatient(ctx, *sig.PatientID)
		if err != nil {
			return nil, fmt.Errorf("resolve patient scope: %w", err)
		}
		var ids []uuid.UUID
		for _, g := range grants {
			if g.RequesterID == *sig.RequesterID {
				ids = append(ids, g.ID)
			}
		}
		return ids, nil
	}
	return nil, nil
}

func grantIDs(grants []*grant.AccessGrant) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.ID)
	}
	return ids
}
