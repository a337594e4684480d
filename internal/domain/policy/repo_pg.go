package policy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepoPG reads policy rules from the policy_rules table.
type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const ruleCols = `id, allowed_purpose_codes, max_duration_seconds, max_access_level,
	requires_manual_approval, active, created_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	err := row.Scan(
		&r.ID, &r.AllowedPurposeCodes, &r.MaxDurationSeconds, &r.MaxAccessLevel,
		&r.RequiresManualApproval, &r.Active, &r.CreatedAt,
	)
	return &r, err
}

func (p *RepoPG) ListActive(ctx context.Context) ([]*Rule, error) {
	q := fmt.Sprintf("SELECT %s FROM policy_rules WHERE active ORDER BY created_at", ruleCols)
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active policy rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rules: %w", err)
	}
	return rules, nil
}
