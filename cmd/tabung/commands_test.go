package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tabung.org/internal/ledger"
	"tabung.org/internal/store/memory"
)

func TestReconcileReportsPrunedCount(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var out bytes.Buffer
	a := &app{ledger: ledger.New(store), out: &out}

	if _, err := a.ledger.OpenAccount(ctx, "Ali", "ABC1234", ledger.Savings, "1234"); err != nil {
		t.Fatal(err)
	}
	if err := a.reconcile(ctx, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := out.String(); got != "index consistent\n" {
		t.Fatalf("clean index output %q", got)
	}

	_ = store.AppendKey(ctx, "7654321")
	out.Reset()
	if err := a.reconcile(ctx, nil); !errors.Is(err, ledger.ErrIndexCorruption) {
		t.Fatalf("expected corruption, got %v", err)
	}
	if !strings.Contains(out.String(), "broken: 7654321") {
		t.Fatalf("broken entry not listed: %q", out.String())
	}

	out.Reset()
	if err := a.reconcile(ctx, []string{"-prune"}); err != nil {
		t.Fatalf("reconcile -prune: %v", err)
	}
	if got := out.String(); got != "pruned: 7654321\nindex consistent after pruning 1 entries\n" {
		t.Fatalf("prune output %q", got)
	}
}
