package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemLedger_AppendAssignsID(t *testing.T) {
	l := NewMemLedger()
	ev := &Event{ContractID: uuid.New(), EventType: EventCreated, Actor: ActorSystem}
	if err := l.Append(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected ULID to be assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected timestamp to be assigned")
	}
}

func TestMemLedger_RejectsMissingType(t *testing.T) {
	l := NewMemLedger()
	if err := l.Append(context.Background(), &Event{}); err == nil {
		t.Fatal("expected error for event without type")
	}
}

func TestMemLedger_ListFilters(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	contract := uuid.New()
	patient := uuid.New()

	events := []*Event{
		{ContractID: contract, PatientID: patient, EventType: EventCreated, Actor: "req-1"},
		{ContractID: contract, PatientID: patient, EventType: EventApproved, Actor: ActorSystem},
		{ContractID: uuid.New(), PatientID: uuid.New(), EventType: EventCreated, Actor: "req-2"},
	}
	for _, ev := range events {
		if err := l.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, total, err := l.List(ctx, Filter{ContractID: &contract}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Errorf("expected 2 events for contract, got %d (total %d)", len(got), total)
	}

	got, total, err = l.List(ctx, Filter{EventType: EventApproved}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || got[0].EventType != EventApproved {
		t.Errorf("expected single approved event, got %d", total)
	}
}

func TestMemLedger_ListPaginates(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Append(ctx, &Event{ContractID: uuid.New(), EventType: EventCreated, Actor: ActorSystem})
	}

	page, total, err := l.List(ctx, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Errorf("expected page of 2 from total 5, got %d/%d", len(page), total)
	}

	past, total, err := l.List(ctx, Filter{}, 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(past) != 0 {
		t.Errorf("expected empty page past end, got %d", len(past))
	}
}

func TestMemLedger_AppendCopiesEvent(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	ev := &Event{ContractID: uuid.New(), EventType: EventCreated, Actor: "req-1"}
	l.Append(ctx, ev)

	// Mutating the caller's struct must not change the stored entry.
	ev.Actor = "tampered"

	got, _, err := l.List(ctx, Filter{}, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].Actor != "req-1" {
		t.Errorf("ledger entry was mutated after append: %s", got[0].Actor)
	}
}

func TestNewEventID_Ordered(t *testing.T) {
	a := NewEventID()
	b := NewEventID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ULIDs, got %q %q", a, b)
	}
	if b < a {
		t.Errorf("expected later ULID to sort after earlier one: %s < %s", b, a)
	}
}
