// Package file keeps the ledger in a directory of flat text files: one record
// per account, an index of account numbers and a journal of staged
// remittances.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tabung.org/internal/ledger"
	"tabung.org/internal/record"
)

const (
	journalHeader      = "Journal: "
	journalStaged      = "staged"
	journalOutstanding = "outstanding"
)

const (
	recordExt   = ".txt"
	journalDir  = "journal"
	journalSep  = "%%\n"
	maxNumberSz = 20
)

// Store implements ledger.Store and ledger.Journal over a directory.
type Store struct {
	dir   string
	index *Index
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.Journal = (*Store)(nil)
)

// Open prepares dir (and its journal subdirectory) and returns a Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, journalDir), 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, index: NewIndex(filepath.Join(dir, IndexFile))}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) recordPath(number string) (string, bool) {
	if number == "" || len(number) > maxNumberSz {
		return "", false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return "", false
		}
	}
	return filepath.Join(s.dir, number+recordExt), true
}

func (s *Store) Get(ctx context.Context, number string) (ledger.Account, error) {
	path, ok := s.recordPath(number)
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ledger.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("read account %s: %w", number, err)
	}
	acc, err := record.Decode(data)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("account %s: %w", number, err)
	}
	return acc, nil
}

func (s *Store) Put(ctx context.Context, acc ledger.Account) error {
	path, ok := s.recordPath(acc.Number)
	if !ok {
		return fmt.Errorf("invalid account number %q", acc.Number)
	}
	return writeAtomic(path, record.Encode(acc))
}

func (s *Store) Delete(ctx context.Context, number string) error {
	path, ok := s.recordPath(number)
	if !ok {
		return ledger.ErrNotFound
	}
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return ledger.ErrNotFound
	}
	return err
}

func (s *Store) Contains(ctx context.Context, number string) (bool, error) {
	return s.index.Contains(number)
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) { return s.index.List() }

func (s *Store) AppendKey(ctx context.Context, number string) error { return s.index.Append(number) }

func (s *Store) RemoveKey(ctx context.Context, number string) error { return s.index.Remove(number) }

// Journal -------------------------------------------------------------------

func (s *Store) journalPath(id string) string {
	return filepath.Join(s.dir, journalDir, id+recordExt)
}

// Stage writes a staged write to one journal file: a header line naming its
// state, then the prior and next record of each leg, all separated by "%%".
func (s *Store) Stage(ctx context.Context, w ledger.StagedWrite) error {
	var b bytes.Buffer
	header := journalStaged
	if w.Outstanding {
		header = journalOutstanding
	}
	b.WriteString(journalHeader + header + "\n")
	for _, leg := range w.Legs {
		for _, acc := range []ledger.Account{leg.Prior, leg.Next} {
			b.WriteString(journalSep)
			b.Write(record.Encode(acc))
		}
	}
	return writeAtomic(s.journalPath(w.ID), b.Bytes())
}

// Clear drops a journal entry. Clearing an absent entry is not an error.
func (s *Store) Clear(ctx context.Context, id string) error {
	err := os.Remove(s.journalPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Pending returns staged writes oldest first.
func (s *Store) Pending(ctx context.Context) ([]ledger.StagedWrite, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, journalDir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]ledger.StagedWrite, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, journalDir, name))
		if err != nil {
			return nil, err
		}
		w, err := decodeJournal(strings.TrimSuffix(name, recordExt), data)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func decodeJournal(id string, data []byte) (ledger.StagedWrite, error) {
	w := ledger.StagedWrite{ID: id}
	parts := strings.Split(string(data), "\n"+journalSep)
	switch strings.TrimRight(parts[0], "\r\n") {
	case journalHeader + journalStaged:
	case journalHeader + journalOutstanding:
		w.Outstanding = true
	default:
		return w, fmt.Errorf("journal %s: bad header %q: %w", id, parts[0], ledger.ErrUnreadable)
	}
	recs := parts[1:]
	if len(recs)%2 != 0 {
		return w, fmt.Errorf("journal %s: %d records do not pair into legs: %w", id, len(recs), ledger.ErrUnreadable)
	}
	for i := 0; i < len(recs); i += 2 {
		prior, err := record.Decode([]byte(recs[i]))
		if err != nil {
			return w, fmt.Errorf("journal %s: %w", id, err)
		}
		next, err := record.Decode([]byte(recs[i+1]))
		if err != nil {
			return w, fmt.Errorf("journal %s: %w", id, err)
		}
		w.Legs = append(w.Legs, ledger.Leg{Prior: prior, Next: next})
	}
	return w, nil
}
