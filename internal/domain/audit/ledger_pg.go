package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerPG persists audit events in the audit_events table. The table only
// ever receives INSERTs; there is no update or delete path.
type LedgerPG struct {
	pool *pgxpool.Pool
}

func NewLedgerPG(pool *pgxpool.Pool) *LedgerPG {
	return &LedgerPG{pool: pool}
}

const eventCols = `id, contract_id, patient_id, event_type, actor, occurred_at,
	reason, previous_status, new_status`

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(
		&ev.ID, &ev.ContractID, &ev.PatientID, &ev.EventType, &ev.Actor, &ev.Timestamp,
		&ev.Reason, &ev.PreviousStatus, &ev.NewStatus,
	)
	return &ev, err
}

func (l *LedgerPG) Append(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	const q = `
		INSERT INTO audit_events (
			id, contract_id, patient_id, event_type, actor, occurred_at,
			reason, previous_status, new_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := l.pool.Exec(ctx, q,
		ev.ID, ev.ContractID, ev.PatientID, ev.EventType, ev.Actor, ev.Timestamp,
		ev.Reason, ev.PreviousStatus, ev.NewStatus,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (l *LedgerPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if f.ContractID != nil {
		where = append(where, fmt.Sprintf("contract_id = $%d", idx))
		args = append(args, *f.ContractID)
		idx++
	}
	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	if f.EventType != "" {
		where = append(where, fmt.Sprintf("event_type = $%d", idx))
		args = append(args, f.EventType)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_events %s", whereClause)
	var total int
	if err := l.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM audit_events %s ORDER BY id LIMIT $%d OFFSET $%d",
		eventCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, total, nil
}
