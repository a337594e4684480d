package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EventType identifies the lifecycle transition or access decision an event
// records.
type EventType string

const (
	EventCreated      EventType = "created"
	EventApproved     EventType = "approved"
	EventRejected     EventType = "rejected"
	EventAccessed     EventType = "accessed"
	EventAccessDenied EventType = "access_denied"
	EventExpired      EventType = "expired"
	EventRevoked      EventType = "revoked"
)

// ActorSystem is the actor recorded for transitions driven by background
// processes rather than a requester or patient.
const ActorSystem = "system"

// Event is one immutable entry in the consent audit trail. Events are
// written exactly once per committed state transition and once per access
// check, and are never updated or deleted.
type Event struct {
	ID             string     `json:"id"`
	ContractID     uuid.UUID  `json:"contract_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	EventType      EventType  `json:"event_type"`
	Actor          string     `json:"actor"`
	Timestamp      time.Time  `json:"timestamp"`
	Reason         *string    `json:"reason,omitempty"`
	PreviousStatus string     `json:"previous_status"`
	NewStatus      string     `json:"new_status"`
}

// NewEventID returns a ULID. ULIDs sort lexically by creation time, which
// keeps the exported feed ordered without a separate sequence column.
func NewEventID() string {
	return ulid.Make().String()
}
