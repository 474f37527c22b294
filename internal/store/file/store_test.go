package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"tabung.org/internal/ledger"
	"tabung.org/internal/record"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func sample(number string) ledger.Account {
	return ledger.Account{
		Number:   number,
		Name:     "Ali bin Abu",
		IDNumber: "900101-14-5678",
		Type:     ledger.Savings,
		PIN:      "1234",
		Balance:  decimal.RequireFromString("250.75"),
	}
}

func TestPutGetDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "1234567"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	acc := sample("1234567")
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(), "1234567.txt"))
	if err != nil {
		t.Fatalf("record file missing: %v", err)
	}
	if want := "Account Number: 1234567\n"; string(data[:len(want)]) != want {
		t.Fatalf("unexpected record text: %q", data)
	}

	got, err := s.Get(ctx, "1234567")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != acc.Name || !got.Balance.Equal(acc.Balance) {
		t.Fatalf("unexpected account %+v", got)
	}

	if err := s.Delete(ctx, "1234567"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "1234567"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestGetUnreadableRecord(t *testing.T) {
	s := openStore(t)
	path := filepath.Join(s.Dir(), "7654321.txt")
	if err := os.WriteFile(path, []byte("Account Number: 7654321\nName: Ali\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Get(context.Background(), "7654321")
	if !errors.Is(err, ledger.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if errors.Is(err, ledger.ErrNotFound) {
		t.Fatal("unreadable record must not look absent")
	}
}

func TestRejectsPathLikeNumbers(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "../etc/passwd"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, sample("12/34")); err == nil {
		t.Fatal("expected Put to reject number")
	}
}

func TestIndexAppendListRemove(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	keys, err := s.ListKeys(ctx)
	if err != nil || len(keys) != 0 {
		t.Fatalf("fresh index: keys=%v err=%v", keys, err)
	}
	for _, k := range []string{"3000001", "1000002", "2000003"} {
		if err := s.AppendKey(ctx, k); err != nil {
			t.Fatalf("AppendKey(%s): %v", k, err)
		}
	}
	ok, err := s.Contains(ctx, "1000002")
	if err != nil || !ok {
		t.Fatalf("Contains: ok=%v err=%v", ok, err)
	}
	if err := s.RemoveKey(ctx, "1000002"); err != nil {
		t.Fatalf("RemoveKey: %v", err)
	}
	keys, _ = s.ListKeys(ctx)
	if !reflect.DeepEqual(keys, []string{"3000001", "2000003"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if ok, _ := s.Contains(ctx, "1000002"); ok {
		t.Fatal("removed key still present")
	}
}

func TestIndexRemoveKeepsPreviousOnFailedSwap(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, k := range []string{"1111111", "2222222"} {
		if err := s.AppendKey(ctx, k); err != nil {
			t.Fatal(err)
		}
	}

	rename = func(string, string) error { return errors.New("disk full") }
	defer func() { rename = os.Rename }()

	if err := s.RemoveKey(ctx, "1111111"); err == nil {
		t.Fatal("expected RemoveKey to fail")
	}
	keys, err := s.ListKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"1111111", "2222222"}) {
		t.Fatalf("index changed after failed swap: %v", keys)
	}
	entries, _ := os.ReadDir(s.Dir())
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestIndexAppendFailsLoudly(t *testing.T) {
	ix := NewIndex(filepath.Join(t.TempDir(), "missing", IndexFile))
	if err := ix.Append("1234567"); err == nil {
		t.Fatal("expected append error")
	}
}

func TestIndexAppendSyncs(t *testing.T) {
	ix := NewIndex(filepath.Join(t.TempDir(), IndexFile))
	var synced []string
	syncFile = func(f *os.File) error {
		synced = append(synced, filepath.Base(f.Name()))
		return errors.New("device gone")
	}
	defer func() { syncFile = (*os.File).Sync }()

	if err := ix.Append("1234567"); err == nil {
		t.Fatal("expected sync failure to surface")
	}
	if len(synced) != 1 || synced[0] != IndexFile {
		t.Fatalf("index not synced before close: %v", synced)
	}
}

func TestJournalStagePendingClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a, b := sample("1111111"), sample("2222222")
	b.Name = "---"
	b.Type = ledger.Current
	a2, b2 := a, b
	a2.Balance = a.Balance.Sub(decimal.NewFromInt(3))
	b2.Balance = b.Balance.Add(decimal.NewFromInt(3))

	if err := s.Stage(ctx, ledger.StagedWrite{ID: "01B", Legs: []ledger.Leg{{Prior: a, Next: a2}, {Prior: b, Next: b2}}}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := s.Stage(ctx, ledger.StagedWrite{ID: "01A", Legs: []ledger.Leg{{Prior: b, Next: b2}}, Outstanding: true}); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	pending, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "01A" || pending[1].ID != "01B" {
		t.Fatalf("unexpected pending order: %+v", pending)
	}
	if !pending[0].Outstanding || pending[1].Outstanding {
		t.Fatalf("outstanding flag lost: %+v", pending)
	}
	legs := pending[1].Legs
	if len(legs) != 2 || legs[1].Prior.Name != "---" || legs[1].Next.Type != ledger.Current {
		t.Fatalf("unexpected staged legs: %+v", legs)
	}
	if !legs[0].Prior.Balance.Equal(a.Balance) || !legs[0].Next.Balance.Equal(a2.Balance) {
		t.Fatalf("leg balances swapped: %+v", legs[0])
	}

	// Restaging replaces the entry.
	if err := s.Stage(ctx, ledger.StagedWrite{ID: "01B", Legs: []ledger.Leg{{Prior: b, Next: b2}}}); err != nil {
		t.Fatalf("restage: %v", err)
	}
	pending, _ = s.Pending(ctx)
	if len(pending[1].Legs) != 1 {
		t.Fatalf("restage kept %d legs", len(pending[1].Legs))
	}

	if err := s.Clear(ctx, "01A"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(ctx, "01A"); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	pending, _ = s.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected one pending journal, got %d", len(pending))
	}
}

func TestJournalRejectsMalformedEntry(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a := sample("1111111")
	body := "Journal: staged\n" + journalSep + string(record.Encode(a))
	if err := os.WriteFile(s.journalPath("01C"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pending(ctx); !errors.Is(err, ledger.ErrUnreadable) {
		t.Fatalf("expected unreadable journal, got %v", err)
	}
}
