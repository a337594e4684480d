package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StorePG is the Postgres ContractStore. Optimistic versioning is enforced
// with a row lock inside a transaction: the row is re-read FOR UPDATE, the
// expected version is compared, and the update commits with version+1.
type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

const grantCols = `id, patient_id, requester_id, data_type_scopes, purpose, purpose_code,
	purpose_restrictions, access_level, window_start_minute, window_end_minute,
	status, created_at, expires_at, approved_at, revoked_at, revocation_reason, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row rowScanner) (*AccessGrant, error) {
	var g AccessGrant
	var windowStart, windowEnd *int
	err := row.Scan(
		&g.ID, &g.PatientID, &g.RequesterID, &g.DataTypeScopes, &g.Purpose, &g.PurposeCode,
		&g.PurposeRestrictions, &g.AccessLevel, &windowStart, &windowEnd,
		&g.Status, &g.CreatedAt, &g.ExpiresAt, &g.ApprovedAt, &g.RevokedAt, &g.RevocationReason, &g.Version,
	)
	if err != nil {
		return nil, err
	}
	if windowStart != nil && windowEnd != nil {
		g.TimeRestrictions = &TimeWindow{StartMinute: *windowStart, EndMinute: *windowEnd}
	}
	return &g, nil
}

func windowColumns(g *AccessGrant) (start, end *int) {
	if g.TimeRestrictions != nil {
		s, e := g.TimeRestrictions.StartMinute, g.TimeRestrictions.EndMinute
		return &s, &e
	}
	return nil, nil
}

func (s *StorePG) Create(ctx context.Context, g *AccessGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if !g.ExpiresAt.After(g.CreatedAt) {
		return fmt.Errorf("grant %s: expiresAt must be after createdAt", g.ID)
	}
	g.Version = 1

	const q = `
		INSERT INTO access_grants (
			id, patient_id, requester_id, data_type_scopes, purpose, purpose_code,
			purpose_restrictions, access_level, window_start_minute, window_end_minute,
			status, created_at, expires_at, approved_at, revoked_at, revocation_reason, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	windowStart, windowEnd := windowColumns(g)
	_, err := s.pool.Exec(ctx, q,
		g.ID, g.PatientID, g.RequesterID, g.DataTypeScopes, g.Purpose, g.PurposeCode,
		g.PurposeRestrictions, g.AccessLevel, windowStart, windowEnd,
		g.Status, g.CreatedAt, g.ExpiresAt, g.ApprovedAt, g.RevokedAt, g.RevocationReason, g.Version,
	)
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

func (s *StorePG) Get(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	q := fmt.Sprintf("SELECT %s FROM access_grants WHERE id = $1", grantCols)
	g, err := scanGrant(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (s *StorePG) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*AccessGrant) error) (*AccessGrant, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cas transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := fmt.Sprintf("SELECT %s FROM access_grants WHERE id = $1 FOR UPDATE", grantCols)
	g, err := scanGrant(tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read grant for cas: %w", err)
	}
	if g.Version != expectedVersion {
		return nil, ErrConcurrentModification
	}

	if err := mutate(g); err != nil {
		return nil, err
	}
	g.Version = expectedVersion + 1

	const update = `
		UPDATE access_grants SET
			data_type_scopes = $2, purpose = $3, purpose_code = $4,
			purpose_restrictions = $5, access_level = $6,
			window_start_minute = $7, window_end_minute = $8,
			status = $9, expires_at = $10, approved_at = $11,
			revoked_at = $12, revocation_reason = $13, version = $14
		WHERE id = $1`

	windowStart, windowEnd := windowColumns(g)
	if _, err := tx.Exec(ctx, update,
		g.ID, g.DataTypeScopes, g.Purpose, g.PurposeCode,
		g.PurposeRestrictions, g.AccessLevel,
		windowStart, windowEnd,
		g.Status, g.ExpiresAt, g.ApprovedAt,
		g.RevokedAt, g.RevocationReason, g.Version,
	); err != nil {
		return nil, fmt.Errorf("update grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cas: %w", err)
	}
	return g, nil
}

func (s *StorePG) ListActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]*AccessGrant, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM access_grants WHERE patient_id = $1 AND status = $2 ORDER BY created_at",
		grantCols)
	return s.queryGrants(ctx, q, patientID, StatusApproved)
}

func (s *StorePG) ListActiveForRequester(ctx context.Context, requesterID uuid.UUID) ([]*AccessGrant, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM access_grants WHERE requester_id = $1 AND status = $2 ORDER BY created_at",
		grantCols)
	return s.queryGrants(ctx, q, requesterID, StatusApproved)
}

func (s *StorePG) ListExpiringBefore(ctx context.Context, t time.Time) ([]*AccessGrant, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM access_grants WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at",
		grantCols)
	return s.queryGrants(ctx, q, StatusApproved, t)
}

func (s *StorePG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM access_grants WHERE patient_id = $1", patientID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count grants: %w", err)
	}

	q := fmt.Sprintf(
		"SELECT %s FROM access_grants WHERE patient_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3",
		grantCols)
	grants, err := s.queryGrants(ctx, q, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return grants, total, nil
}

func (s *StorePG) queryGrants(ctx context.Context, q string, args ...interface{}) ([]*AccessGrant, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
