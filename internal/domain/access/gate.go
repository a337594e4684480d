// Package access answers the runtime question "may this requester read this
// data type for this patient right now". Decisions are derived from the
// grant store on every check; the gate never caches and never trusts the
// lifecycle sweep to have kept statuses current.
package access

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/emr/consent/internal/domain/audit"
	"github.com/emr/consent/internal/domain/grant"
)

// Denial reasons surfaced to callers and recorded in the audit trail.
const (
	ReasonNoGrant           = "no_grant"
	ReasonScopeMismatch     = "scope_mismatch"
	ReasonOutsideTimeWindow = "outside_time_window"
	ReasonStoreUnavailable  = "store_unavailable"
)

// CheckRequest identifies one attempted data access.
type CheckRequest struct {
	PatientID   uuid.UUID
	RequesterID uuid.UUID
	DataType    string
}

// Decision is the gate's answer. GrantID names the grant that authorized an
// allowed access.
type Decision struct {
	Allowed bool
	Reason  string
	GrantID *uuid.UUID
}

// Gate evaluates access checks against the grant store.
type Gate struct {
	store  grant.ContractStore
	ledger audit.Ledger
	now    func() time.Time
}

func NewGate(store grant.ContractStore, ledger audit.Ledger) *Gate {
	return &Gate{store: store, ledger: ledger, now: time.Now}
}

// CheckAccess decides whether the request is permitted at the current
// instant and records the outcome in the audit trail. The gate fails closed:
// if the store cannot be consulted the access is denied, never allowed on
// stale or absent data.
//
// Activity is re-derived from each grant's status and expiry here, so a
// grant past its ExpiresAt denies access even if the lifecycle sweep has not
// transitioned it yet.
func (g *Gate) CheckAccess(ctx context.Context, req CheckRequest) (*Decision, error) {
	now := g.now().UTC()

	grants, err := g.store.ListActiveForPatient(ctx, req.PatientID)
	if err != nil {
		log.Error().Err(err).
			Str("patient_id", req.PatientID.String()).
			Str("requester_id", req.RequesterID.String()).
			Msg("access check failed to consult grant store")
		dec := &Decision{Allowed: false, Reason: ReasonStoreUnavailable}
		g.record(ctx, req, dec, now)
		return dec, nil
	}

	var live, inScope []*grant.AccessGrant
	for _, gr := range grants {
		if gr.RequesterID != req.RequesterID || !gr.ActiveAt(now) {
			continue
		}
		live = append(live, gr)
		if gr.HasScope(req.DataType) {
			inScope = append(inScope, gr)
		}
	}

	if len(live) == 0 {
		dec := &Decision{Allowed: false, Reason: ReasonNoGrant}
		g.record(ctx, req, dec, now)
		return dec, nil
	}
	if len(inScope) == 0 {
		dec := &Decision{Allowed: false, Reason: ReasonScopeMismatch}
		g.record(ctx, req, dec, now)
		return dec, nil
	}

	for _, gr := range inScope {
		if gr.TimeRestrictions.Contains(now) {
			id := gr.ID
			dec := &Decision{Allowed: true, GrantID: &id}
			g.record(ctx, req, dec, now)
			return dec, nil
		}
	}

	dec := &Decision{Allowed: false, Reason: ReasonOutsideTimeWindow}
	g.record(ctx, req, dec, now)
	return dec, nil
}

// record appends the access outcome to the audit trail. A failed append on
// the deny path is logged and swallowed; the denial stands either way.
func (g *Gate) record(ctx context.Context, req CheckRequest, dec *Decision, at time.Time) {
	ev := &audit.Event{
		ID:        audit.NewEventID(),
		PatientID: req.PatientID,
		Actor:     req.RequesterID.String(),
		Timestamp: at,
	}
	if dec.Allowed {
		ev.EventType = audit.EventAccessed
		ev.ContractID = *dec.GrantID
	} else {
		ev.EventType = audit.EventAccessDenied
		reason := dec.Reason
		ev.Reason = &reason
	}

	if err := g.ledger.Append(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("patient_id", req.PatientID.String()).
			Str("event_type", string(ev.EventType)).
			Msg("failed to append access audit event")
	}
}
