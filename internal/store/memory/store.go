// Package memory is an in-process ledger.Store for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"tabung.org/internal/ledger"
)

// Store keeps records, the index and staged writes in maps guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	records map[string]ledger.Account
	keys    []string
	staged  map[string]ledger.StagedWrite
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.Journal = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		records: make(map[string]ledger.Account),
		staged:  make(map[string]ledger.StagedWrite),
	}
}

func (s *Store) Get(ctx context.Context, number string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.records[number]
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return acc, nil
}

func (s *Store) Put(ctx context.Context, acc ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[acc.Number] = acc
	return nil
}

func (s *Store) Delete(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[number]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.records, number)
	return nil
}

func (s *Store) Contains(ctx context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k == number {
			return true, nil
		}
	}
	return false, nil
}

// ListKeys returns a copy so callers cannot reorder the index.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *Store) AppendKey(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, number)
	return nil
}

func (s *Store) RemoveKey(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if k != number {
			kept = append(kept, k)
		}
	}
	s.keys = kept
	return nil
}

func (s *Store) Stage(ctx context.Context, w ledger.StagedWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Legs = append([]ledger.Leg(nil), w.Legs...)
	s.staged[w.ID] = w
	return nil
}

func (s *Store) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, id)
	return nil
}

func (s *Store) Pending(ctx context.Context) ([]ledger.StagedWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.staged))
	for id := range s.staged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ledger.StagedWrite, 0, len(ids))
	for _, id := range ids {
		w := s.staged[id]
		w.Legs = append([]ledger.Leg(nil), w.Legs...)
		out = append(out, w)
	}
	return out, nil
}
