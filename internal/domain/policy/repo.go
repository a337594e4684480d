package policy

import (
	"context"
)

// Repository provides read access to active policy rules. Rule management
// lives in an external administrative surface; this engine only reads.
type Repository interface {
	ListActive(ctx context.Context) ([]*Rule, error)
}

// StaticRepository serves a fixed rule set. Used in tests and development
// mode where no policy table is provisioned.
type StaticRepository struct {
	rules []*Rule
}

func NewStaticRepository(rules []*Rule) *StaticRepository {
	return &StaticRepository{rules: rules}
}

func (r *StaticRepository) ListActive(_ context.Context) ([]*Rule, error) {
	out := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}
