package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emr/consent/internal/domain/audit"
	"github.com/emr/consent/internal/domain/policy"
)

// casRetries bounds re-read-and-retry loops on the manual approval path.
// The sweep and revocation paths deliberately contend less (see Expire,
// Revoke).
const casRetries = 3

// Service owns every grant state transition. Each committed transition
// appends exactly one audit event; idempotent no-ops append none.
type Service struct {
	store  ContractStore
	rules  policy.Repository
	ledger audit.Ledger
	now    func() time.Time
}

func NewService(store ContractStore, rules policy.Repository, ledger audit.Ledger) *Service {
	return &Service{
		store:  store,
		rules:  rules,
		ledger: ledger,
		now:    time.Now,
	}
}

// Submit validates a grant request, evaluates it against the active policy
// rules, persists the resulting grant, and audits the outcome. Depending on
// the decision the returned grant is pending, approved, or rejected.
func (s *Service) Submit(ctx context.Context, req *Request) (*AccessGrant, *policy.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy rules: %w", err)
	}

	dec := policy.Evaluate(policy.EvaluationRequest{
		PurposeCode:       req.PurposeCode,
		RequestedDuration: req.Duration,
		AccessLevel:       req.AccessLevel,
	}, rules)

	now := s.now().UTC()
	duration := dec.EffectiveDuration
	if duration <= 0 {
		duration = req.Duration
	}

	g := &AccessGrant{
		ID:                  uuid.New(),
		PatientID:           req.PatientID,
		RequesterID:         req.RequesterID,
		DataTypeScopes:      append([]string(nil), req.DataTypes...),
		Purpose:             req.Purpose,
		PurposeCode:         req.PurposeCode,
		PurposeRestrictions: append([]string(nil), req.PurposeRestrictions...),
		AccessLevel:         req.AccessLevel,
		TimeRestrictions:    req.TimeRestrictions,
		Status:              StatusPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(duration),
	}

	if err := s.store.Create(ctx, g); err != nil {
		return nil, nil, err
	}
	if err := s.audit(ctx, g, audit.EventCreated, req.RequesterID.String(), "", "", StatusPending); err != nil {
		return nil, nil, err
	}

	switch dec.Outcome {
	case policy.OutcomeApproved:
		g, err = s.Approve(ctx, g.ID, audit.ActorSystem)
	case policy.OutcomeRejected:
		g, err = s.Reject(ctx, g.ID, audit.ActorSystem, dec.Reason)
	}
	if err != nil {
		return nil, nil, err
	}
	return g, &dec, nil
}

// Approve drives pending -> approved. Approving a grant that is already
// approved or terminal is an idempotent no-op that emits no audit event.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor string) (*AccessGrant, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		g, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if g.Status == StatusApproved || g.Status.Terminal() {
			return g, nil
		}

		updated, err := s.store.CompareAndSwap(ctx, id, g.Version, func(g *AccessGrant) error {
			if !g.Status.CanTransitionTo(StatusApproved) {
				return fmt.Errorf("cannot approve grant in status %s", g.Status)
			}
			g.Status = StatusApproved
			t := s.now().UTC()
			g.ApprovedAt = &t
			return nil
		})
		if errors.Is(err, ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.audit(ctx, updated, audit.EventApproved, actor, "", StatusPending, StatusApproved); err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConcurrentModification
}

// Reject drives pending -> rejected. A reason is required. Rejecting a
// grant already terminal is an idempotent no-op.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor, reason string) (*AccessGrant, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Msg: "is required for rejection"}
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		g, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if g.Status.Terminal() {
			return g, nil
		}
		if g.Status != StatusPending {
			return nil, fmt.Errorf("cannot reject grant in status %s", g.Status)
		}

		updated, err := s.store.CompareAndSwap(ctx, id, g.Version, func(g *AccessGrant) error {
			if !g.Status.CanTransitionTo(StatusRejected) {
				return fmt.Errorf("cannot reject grant in status %s", g.Status)
			}
			g.Status = StatusRejected
			return nil
		})
		if errors.Is(err, ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.audit(ctx, updated, audit.EventRejected, actor, reason, StatusPending, StatusRejected); err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConcurrentModification
}

// Expire attempts a single approved -> expired transition for a grant the
// sweep observed past its ExpiresAt. A concurrent modification means another
// process already handled the grant, so the sweep skips rather than
// contends; expiry is bookkeeping, not authorization. Returns whether this
// call committed the transition.
func (s *Service) Expire(ctx context.Context, g *AccessGrant) (bool, error) {
	if g.Status != StatusApproved {
		return false, nil
	}
	if s.now().UTC().Before(g.ExpiresAt) {
		return false, nil
	}

	updated, err := s.store.CompareAndSwap(ctx, g.ID, g.Version, func(g *AccessGrant) error {
		if !g.Status.CanTransitionTo(StatusExpired) {
			return fmt.Errorf("cannot expire grant in status %s", g.Status)
		}
		g.Status = StatusExpired
		return nil
	})
	if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.audit(ctx, updated, audit.EventExpired, audit.ActorSystem, "", StatusApproved, StatusExpired); err != nil {
		return true, err
	}
	return true, nil
}

// Revoke drives approved -> revoked with the given reason. Revoking a grant
// already in a terminal state is an idempotent no-op: it succeeds, commits
// nothing, and emits no second audit event. On concurrent modification the
// record is re-read and retried once; if the competing writer produced a
// terminal state the revoke counts as already handled. Returns whether this
// call committed the transition.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, actor, reason string) (bool, error) {
	if reason == "" {
		return false, &ValidationError{Field: "reason", Msg: "is required for revocation"}
	}

	for attempt := 0; attempt < 2; attempt++ {
		g, err := s.store.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if g.Status.Terminal() {
			return false, nil
		}
		if g.Status != StatusApproved {
			// Pending grants are not revocable; they resolve through
			// approve/reject.
			return false, nil
		}

		updated, err := s.store.CompareAndSwap(ctx, id, g.Version, func(g *AccessGrant) error {
			if !g.Status.CanTransitionTo(StatusRevoked) {
				return fmt.Errorf("cannot revoke grant in status %s", g.Status)
			}
			g.Status = StatusRevoked
			t := s.now().UTC()
			g.RevokedAt = &t
			r := reason
			g.RevocationReason = &r
			return nil
		})
		if errors.Is(err, ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return false, err
		}

		if err := s.audit(ctx, updated, audit.EventRevoked, actor, reason, StatusApproved, StatusRevoked); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, ErrConcurrentModification
}

// Get returns the current grant record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return s.store.Get(ctx, id)
}

// ListForPatient returns a page of the patient's grants, any status.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	return s.store.ListForPatient(ctx, patientID, limit, offset)
}

func (s *Service) audit(ctx context.Context, g *AccessGrant, et audit.EventType, actor, reason string, prev, next Status) error {
	ev := &audit.Event{
		ID:             audit.NewEventID(),
		ContractID:     g.ID,
		PatientID:      g.PatientID,
		EventType:      et,
		Actor:          actor,
		Timestamp:      s.now().UTC(),
		PreviousStatus: string(prev),
		NewStatus:      string(next),
	}
	if reason != "" {
		r := reason
		ev.Reason = &r
	}
	if err := s.ledger.Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s audit event for grant %s: %w", et, g.ID, err)
	}
	return nil
}
