package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the contract id is unknown to the store.
	ErrNotFound = errors.New("grant not found")

	// ErrConcurrentModification means another writer committed first; the
	// caller must re-read and decide whether to retry.
	ErrConcurrentModification = errors.New("grant was concurrently modified")
)

// ValidationError rejects a malformed request before persistence.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Msg)
}

// ContractStore is the durable repository of grant records. It is the single
// source of truth; every writer goes through CompareAndSwap so that a
// revocation and an unrelated update can never silently clobber each other.
type ContractStore interface {
	// Create persists a new grant. The store assigns Version 1.
	Create(ctx context.Context, g *AccessGrant) error

	// Get returns the current record or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*AccessGrant, error)

	// CompareAndSwap applies mutate to the current record iff its version
	// still equals expectedVersion, bumps the version, and persists. It
	// returns ErrConcurrentModification when another writer got there first
	// and ErrNotFound for unknown ids.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*AccessGrant) error) (*AccessGrant, error)

	// ListActiveForPatient returns the patient's grants in approved status.
	// Callers must still derive activity from ExpiresAt; the sweep may lag.
	ListActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]*AccessGrant, error)

	// ListActiveForRequester returns a requester's grants in approved
	// status, across patients. Used to resolve org-wide revocation scopes.
	ListActiveForRequester(ctx context.Context, requesterID uuid.UUID) ([]*AccessGrant, error)

	// ListExpiringBefore returns approved grants whose ExpiresAt is at or
	// before the given instant.
	ListExpiringBefore(ctx context.Context, t time.Time) ([]*AccessGrant, error)

	// ListForPatient returns all of a patient's grants regardless of status.
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error)
}
