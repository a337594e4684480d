package grant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestGrant(patientID, requesterID uuid.UUID, created time.Time) *AccessGrant {
	return &AccessGrant{
		ID:             uuid.New(),
		PatientID:      patientID,
		RequesterID:    requesterID,
		DataTypeScopes: []string{"lab-results"},
		Purpose:        "care coordination",
		PurposeCode:    "TREAT",
		AccessLevel:    "read-summary",
		Status:         StatusPending,
		CreatedAt:      created,
		ExpiresAt:      created.Add(72 * time.Hour),
	}
}

func TestMemStoreCreateAssignsVersionOne(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	g := newTestGrant(uuid.New(), uuid.New(), time.Now().UTC())

	if err := store.Create(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
}

func TestMemStoreCreateRejectsNonPositiveLifetime(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	g := newTestGrant(uuid.New(), uuid.New(), time.Now().UTC())
	g.ExpiresAt = g.CreatedAt

	if err := store.Create(ctx, g); err == nil {
		t.Fatal("expected error for expiresAt == createdAt")
	}
}

func TestMemStoreGetUnknown(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	g := newTestGrant(uuid.New(), uuid.New(), time.Now().UTC())
	if err := store.Create(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.CompareAndSwap(ctx, g.ID, 1, func(g *AccessGrant) error {
		g.Status = StatusApproved
		return nil
	})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if updated.Status != StatusApproved || updated.Version != 2 {
		t.Errorf("got status=%s version=%d, want approved v2", updated.Status, updated.Version)
	}

	// Stale expected version loses.
	_, err = store.CompareAndSwap(ctx, g.ID, 1, func(g *AccessGrant) error {
		g.Status = StatusRevoked
		return nil
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("err = %v, want ErrConcurrentModification", err)
	}

	got, _ := store.Get(ctx, g.ID)
	if got.Status != StatusApproved {
		t.Errorf("stale write must not apply, status = %s", got.Status)
	}
}

func TestMemStoreCompareAndSwapMutateErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	g := newTestGrant(uuid.New(), uuid.New(), time.Now().UTC())
	if err := store.Create(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.CompareAndSwap(ctx, g.ID, 1, func(g *AccessGrant) error {
		g.Status = StatusApproved
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := store.Get(ctx, g.ID)
	if got.Status != StatusPending || got.Version != 1 {
		t.Errorf("failed mutate must leave record untouched, got status=%s version=%d", got.Status, got.Version)
	}
}

func TestMemStoreLists(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	patient := uuid.New()
	requester := uuid.New()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	approved := newTestGrant(patient, requester, base)
	approved.Status = StatusApproved
	pending := newTestGrant(patient, uuid.New(), base.Add(time.Minute))
	other := newTestGrant(uuid.New(), requester, base.Add(2*time.Minute))
	other.Status = StatusApproved

	for _, g := range []*AccessGrant{approved, pending, other} {
		if err := store.Create(ctx, g); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := store.ListActiveForPatient(ctx, patient)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != approved.ID {
		t.Errorf("active for patient = %d grants, want just the approved one", len(active))
	}

	byRequester, err := store.ListActiveForRequester(ctx, requester)
	if err != nil {
		t.Fatalf("list by requester: %v", err)
	}
	if len(byRequester) != 2 {
		t.Errorf("active for requester = %d, want 2 across patients", len(byRequester))
	}

	due, err := store.ListExpiringBefore(ctx, base.Add(80*time.Hour))
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	if len(due) != 2 {
		t.Errorf("expiring = %d, want the 2 approved grants", len(due))
	}

	all, total, err := store.ListForPatient(ctx, patient, 1, 0)
	if err != nil {
		t.Fatalf("list for patient: %v", err)
	}
	if total != 2 || len(all) != 1 {
		t.Errorf("total=%d page=%d, want total 2 page 1", total, len(all))
	}
	if all[0].ID != approved.ID {
		t.Error("expected oldest grant first")
	}
}
