package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemLedger is a thread-safe, in-memory Ledger for tests and development.
type MemLedger struct {
	mu     sync.RWMutex
	events []*Event
}

func NewMemLedger() *MemLedger {
	return &MemLedger{}
}

func (l *MemLedger) Append(_ context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.EventType == "" {
		return fmt.Errorf("audit event requires an event type")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *ev
	l.events = append(l.events, &cp)
	return nil
}

func (l *MemLedger) List(_ context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []*Event
	for _, ev := range l.events {
		if f.ContractID != nil && ev.ContractID != *f.ContractID {
			continue
		}
		if f.PatientID != nil && ev.PatientID != *f.PatientID {
			continue
		}
		if f.EventType != "" && ev.EventType != f.EventType {
			continue
		}
		cp := *ev
		matched = append(matched, &cp)
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
