package grant

import (
	"context"
	"testing"
	"time"
)

func TestSweepOnceExpiresDueGrants(t *testing.T) {
	svc, store, _ := newTestService(defaultRules())
	ctx := context.Background()

	due, _, err := svc.Submit(ctx, newTestRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	fresh := newTestRequest()
	fresh.Duration = 200 * time.Hour
	live, _, err := svc.Submit(ctx, fresh)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	later := testClock.Add(49 * time.Hour)
	svc.now = func() time.Time { return later }
	sweeper := NewSweeper(svc, store, time.Second)
	sweeper.now = svc.now

	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	if g, _ := store.Get(ctx, due.ID); g.Status != StatusExpired {
		t.Errorf("due grant status = %s", g.Status)
	}
	if g, _ := store.Get(ctx, live.ID); g.Status != StatusApproved {
		t.Errorf("live grant status = %s", g.Status)
	}
}

func TestSweepOnceIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(defaultRules())
	ctx := context.Background()

	if _, _, err := svc.Submit(ctx, newTestRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	later := testClock.Add(49 * time.Hour)
	svc.now = func() time.Time { return later }
	sweeper := NewSweeper(svc, store, time.Second)
	sweeper.now = svc.now

	if n, err := sweeper.SweepOnce(ctx); err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, err := sweeper.SweepOnce(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep must find nothing: n=%d err=%v", n, err)
	}
}

func TestSweeperStartStopsOnCancel(t *testing.T) {
	svc, store, _ := newTestService(defaultRules())
	sweeper := NewSweeper(svc, store, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
