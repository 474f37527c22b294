package memory

import (
	"context"
	"errors"
	"testing"

	"tabung.org/internal/ledger"
)

func TestIndexOrderAndCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.AppendKey(ctx, "2000000")
	_ = s.AppendKey(ctx, "1000000")

	keys, _ := s.ListKeys(ctx)
	keys[0] = "tampered"
	again, _ := s.ListKeys(ctx)
	if again[0] != "2000000" || again[1] != "1000000" {
		t.Fatalf("index order or isolation broken: %v", again)
	}
	_ = s.RemoveKey(ctx, "2000000")
	if ok, _ := s.Contains(ctx, "2000000"); ok {
		t.Fatal("removed key still present")
	}
}

func TestDeleteMissing(t *testing.T) {
	if err := New().Delete(context.Background(), "1234567"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
