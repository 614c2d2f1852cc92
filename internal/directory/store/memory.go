package store

import (
	"context"
	"sync"
	"time"

	"residents/internal/directory/models"
	dErrors "residents/pkg/domain-errors"
)

// InMemory keeps the directory in process memory for the lifetime of the
// instance. It starts empty and needs no teardown.
type InMemory struct {
	mu        sync.RWMutex
	residents []*models.Person
	nameIndex map[string]*models.Person
}

// NewInMemory returns an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{nameIndex: make(map[string]*models.Person)}
}

// Append writes the record to the log and the index under one lock.
func (s *InMemory) Append(_ context.Context, person *models.Person) error {
	s.appendAll([]*models.Person{person})
	return nil
}

func (s *InMemory) appendAll(people []*models.Person) {
	if len(people) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range people {
		s.residents = append(s.residents, p)
		s.nameIndex[p.Name] = p
	}
}

// FindLatest returns the most recently added record for name.
func (s *InMemory) FindLatest(_ context.Context, name string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.nameIndex[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns every added record in insertion order, duplicates included.
func (s *InMemory) List(_ context.Context) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(s.residents))
	for _, p := range s.residents {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// CountLivesHere counts log rows recorded as LivesHere.
func (s *InMemory) CountLivesHere(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.residents {
		if p.LivesHere() {
			count++
		}
	}
	return count, nil
}

// MemoryTx serializes adds against an InMemory store. Appends made inside the
// callback are staged and applied only if the callback succeeds.
type MemoryTx struct {
	mu      sync.Mutex
	store   *InMemory
	timeout time.Duration
}

// NewMemoryTx wraps store with a single-writer transaction runner.
func NewMemoryTx(store *InMemory) *MemoryTx {
	return &MemoryTx{store: store}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	ctx, cancel, err := beginTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	staged := &stagedWriter{}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	t.store.appendAll(staged.pending)
	return nil
}
