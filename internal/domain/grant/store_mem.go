package grant

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is a thread-safe, in-memory ContractStore for tests and
// development mode. It enforces the same optimistic versioning contract as
// the Postgres store.
type MemStore struct {
	mu     sync.RWMutex
	grants map[uuid.UUID]*AccessGrant
}

func NewMemStore() *MemStore {
	return &MemStore{grants: make(map[uuid.UUID]*AccessGrant)}
}

func (s *MemStore) Create(_ context.Context, g *AccessGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if !g.ExpiresAt.After(g.CreatedAt) {
		return fmt.Errorf("grant %s: expiresAt must be after createdAt", g.ID)
	}
	g.Version = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.grants[g.ID]; exists {
		return fmt.Errorf("grant %s already exists", g.ID)
	}
	s.grants[g.ID] = g.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, id uuid.UUID) (*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemStore) CompareAndSwap(_ context.Context, id uuid.UUID, expectedVersion int64, mutate func(*AccessGrant) error) (*AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrConcurrentModification
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = expectedVersion + 1
	s.grants[id] = next
	return next.Clone(), nil
}

func (s *MemStore) ListActiveForPatient(_ context.Context, patientID uuid.UUID) ([]*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AccessGrant
	for _, g := range s.grants {
		if g.PatientID == patientID && g.Status == StatusApproved {
			out = append(out, g.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemStore) ListActiveForRequester(_ context.Context, requesterID uuid.UUID) ([]*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AccessGrant
	for _, g := range s.grants {
		if g.RequesterID == requesterID && g.Status == StatusApproved {
			out = append(out, g.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemStore) ListExpiringBefore(_ context.Context, t time.Time) ([]*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AccessGrant
	for _, g := range s.grants {
		if g.Status == StatusApproved && !g.ExpiresAt.After(t) {
			out = append(out, g.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemStore) ListForPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*AccessGrant
	for _, g := range s.grants {
		if g.PatientID == patientID {
			all = append(all, g.Clone())
		}
	}
	sortByCreation(all)

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func sortByCreation(grants []*AccessGrant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].ID.String() < grants[j].ID.String()
		}
		return grants[i].CreatedAt.Before(grants[j].CreatedAt)
	})
}
