package grant

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emr/consent/internal/domain/policy"
)

// Status is the lifecycle state of an access grant. Transitions only ever
// move forward: pending -> approved -> (expired | revoked), and
// pending -> rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusExpired || next == StatusRevoked
	}
	return false
}

// TimeWindow is an allowed-hours restriction expressed in minutes since
// midnight UTC. A window may wrap midnight (start > end).
type TimeWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether the time-of-day component of t falls inside the
// window. The window is half-open: [start, end).
func (w *TimeWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	minute := t.UTC().Hour()*60 + t.UTC().Minute()
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	// Wraps midnight.
	return minute >= w.StartMinute || minute < w.EndMinute
}

// ParseTimeWindow parses an "HH:MM-HH:MM" restriction string.
func ParseTimeWindow(s string) (*TimeWindow, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("time restriction must be HH:MM-HH:MM, got %q", s)
	}
	start, err := parseMinuteOfDay(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseMinuteOfDay(parts[1])
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, fmt.Errorf("time restriction window is empty: %q", s)
	}
	return &TimeWindow{StartMinute: start, EndMinute: end}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// String renders the window back to "HH:MM-HH:MM".
func (w *TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		w.StartMinute/60, w.StartMinute%60, w.EndMinute/60, w.EndMinute%60)
}

// AccessGrant is a time-bound permission letting one requester read specified
// data types for one patient. The store is the single source of truth; all
// timestamps are UTC instants.
type AccessGrant struct {
	ID                  uuid.UUID          `json:"id"`
	PatientID           uuid.UUID          `json:"patient_id"`
	RequesterID         uuid.UUID          `json:"requester_id"`
	DataTypeScopes      []string           `json:"data_type_scopes"`
	Purpose             string             `json:"purpose"`
	PurposeCode         string             `json:"purpose_code"`
	PurposeRestrictions []string           `json:"purpose_restrictions,omitempty"`
	AccessLevel         policy.AccessLevel `json:"access_level"`
	TimeRestrictions    *TimeWindow        `json:"time_restrictions,omitempty"`
	Status              Status             `json:"status"`
	CreatedAt           time.Time          `json:"created_at"`
	ExpiresAt           time.Time          `json:"expires_at"`
	ApprovedAt          *time.Time         `json:"approved_at,omitempty"`
	RevokedAt           *time.Time         `json:"revoked_at,omitempty"`
	RevocationReason    *string            `json:"revocation_reason,omitempty"`
	Version             int64              `json:"version"`
}

// HasScope reports whether the grant covers the given data type.
func (g *AccessGrant) HasScope(dataType string) bool {
	for _, s := range g.DataTypeScopes {
		if s == dataType {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the grant permits access at instant t. Activity
// is derived from both status and the expiry instant, so a grant past its
// expiresAt is inactive even before the lifecycle sweep has transitioned it.
func (g *AccessGrant) ActiveAt(t time.Time) bool {
	if g.Status != StatusApproved {
		return false
	}
	return !t.Before(g.CreatedAt) && t.Before(g.ExpiresAt)
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate a record except through CompareAndSwap.
func (g *AccessGrant) Clone() *AccessGrant {
	cp := *g
	cp.DataTypeScopes = append([]string(nil), g.DataTypeScopes...)
	cp.PurposeRestrictions = append([]string(nil), g.PurposeRestrictions...)
	if g.TimeRestrictions != nil {
		w := *g.TimeRestrictions
		cp.TimeRestrictions = &w
	}
	if g.ApprovedAt != nil {
		t := *g.ApprovedAt
		cp.ApprovedAt = &t
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		cp.RevokedAt = &t
	}
	if g.RevocationReason != nil {
		r := *g.RevocationReason
		cp.RevocationReason = &r
	}
	return &cp
}

// Request is a validated grant request submitted by the requester-facing
// surface.
type Request struct {
	PatientID           uuid.UUID
	RequesterID         uuid.UUID
	DataTypes           []string
	Purpose             string
	PurposeCode         string
	PurposeRestrictions []string
	Duration            time.Duration
	AccessLevel         policy.AccessLevel
	TimeRestrictions    *TimeWindow
}

// Validate rejects malformed requests before anything is persisted.
func (r *Request) Validate() error {
	if r.PatientID == uuid.Nil {
		return &ValidationError{Field: "patientId", Msg: "is required"}
	}
	if r.RequesterID == uuid.Nil {
		return &ValidationError{Field: "requesterId", Msg: "is required"}
	}
	if len(r.DataTypes) == 0 {
		return &ValidationError{Field: "dataTypes", Msg: "must not be empty"}
	}
	for _, dt := range r.DataTypes {
		if strings.TrimSpace(dt) == "" {
			return &ValidationError{Field: "dataTypes", Msg: "must not contain empty entries"}
		}
	}
	if r.PurposeCode == "" {
		return &ValidationError{Field: "purposeCode", Msg: "is required"}
	}
	if r.Duration <= 0 {
		return &ValidationError{Field: "duration", Msg: "must be positive"}
	}
	return nil
}

// Resource is the external representation returned to collaborators querying
// grant status.
type Resource struct {
	ContractID       uuid.UUID  `json:"contractId"`
	PatientID        uuid.UUID  `json:"patientId"`
	RequesterID      uuid.UUID  `json:"requesterId"`
	DataTypes        []string   `json:"dataTypes"`
	Purpose          string     `json:"purpose"`
	PurposeCode      string     `json:"purposeCode"`
	AccessLevel      string     `json:"accessLevel"`
	TimeRestrictions string     `json:"timeRestrictions,omitempty"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	RevocationReason *string    `json:"revocationReason,omitempty"`
}

// ToResource maps a grant to its external representation.
func (g *AccessGrant) ToResource() *Resource {
	r := &Resource{
		ContractID:       g.ID,
		PatientID:        g.PatientID,
		RequesterID:      g.RequesterID,
		DataTypes:        g.DataTypeScopes,
		Purpose:          g.Purpose,
		PurposeCode:      g.PurposeCode,
		AccessLevel:      string(g.AccessLevel),
		Status:           g.Status,
		CreatedAt:        g.CreatedAt,
		ExpiresAt:        g.ExpiresAt,
		ApprovedAt:       g.ApprovedAt,
		RevokedAt:        g.RevokedAt,
		RevocationReason: g.RevocationReason,
	}
	if g.TimeRestrictions != nil {
		r.TimeRestrictions = g.TimeRestrictions.String()
	}
	return r
}
