package policy

import (
	"time"

	"github.com/google/uuid"
)

// AccessLevel is the breadth of data a grant exposes.
type AccessLevel string

const (
	AccessReadSummary AccessLevel = "read-summary"
	AccessReadFull    AccessLevel = "read-full"
)

// ParseAccessLevel returns the access level for an external string,
// defaulting to read-summary for empty input.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch s {
	case "":
		return AccessReadSummary, true
	case string(AccessReadSummary):
		return AccessReadSummary, true
	case string(AccessReadFull):
		return AccessReadFull, true
	}
	return "", false
}

func (a AccessLevel) rank() int {
	switch a {
	case AccessReadSummary:
		return 1
	case AccessReadFull:
		return 2
	}
	return 0
}

// Exceeds reports whether a requests more data than max permits.
func (a AccessLevel) Exceeds(max AccessLevel) bool {
	return a.rank() > max.rank()
}

// Rule is an administrator-defined constraint on the terms a grant request
// may be approved with. Rules are created by an external administrative
// surface and are read-only to this engine.
type Rule struct {
	ID                     uuid.UUID   `json:"id"`
	AllowedPurposeCodes    []string    `json:"allowed_purpose_codes"`
	MaxDurationSeconds     int64       `json:"max_duration_seconds"`
	MaxAccessLevel         AccessLevel `json:"max_access_level"`
	RequiresManualApproval bool        `json:"requires_manual_approval"`
	Active                 bool        `json:"active"`
	CreatedAt              time.Time   `json:"created_at"`
}

// MaxDuration returns the rule's duration ceiling.
func (r *Rule) MaxDuration() time.Duration {
	return time.Duration(r.MaxDurationSeconds) * time.Second
}

// AllowsPurpose reports whether the rule covers the given purpose code.
func (r *Rule) AllowsPurpose(code string) bool {
	for _, c := range r.AllowedPurposeCodes {
		if c == code {
			return true
		}
	}
	return false
}
