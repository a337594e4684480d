package audit

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a ledger listing. Zero-value fields are ignored.
type Filter struct {
	ContractID *uuid.UUID
	PatientID  *uuid.UUID
	EventType  EventType
}

// Ledger is the append-only store of audit events. Any component may append;
// none may mutate existing entries. Implementations must be safe for
// concurrent writers.
type Ledger interface {
	Append(ctx context.Context, ev *Event) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error)
}
