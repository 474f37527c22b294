package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tabung.org/internal/ledger"
	"tabung.org/internal/validate"
)

func TestExitCode(t *testing.T) {
	persist := &ledger.PersistenceError{Stage: ledger.StageSaveReceiver, Number: "1234567", Err: errors.New("disk full")}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"auth", ledger.ErrAuth, exitRejected},
		{"validation", &ledger.ValidationError{Field: "amount", Reason: validate.ReasonNonPositive}, exitRejected},
		{"insufficient", fmt.Errorf("remit: %w", ledger.ErrInsufficientFunds), exitRejected},
		{"persistence", persist, exitPersistence},
		{"corruption", &ledger.CorruptionError{Number: "1234567", Err: ledger.ErrUnreadable}, exitPersistence},
		{"partial", &ledger.PartialRemittanceError{Journal: "01J", Err: persist}, exitPartial},
		{"unresolved", fmt.Errorf("journal 01J: %w", ledger.ErrUnresolvedJournal), exitPersistence},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("%s: exitCode=%d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestDescribeHidesAuthDetail(t *testing.T) {
	if got := describe(ledger.ErrAuth); got != "invalid account number or PIN" {
		t.Fatalf("describe(ErrAuth)=%q", got)
	}
	got := describe(&ledger.PartialRemittanceError{Journal: "01JABC", Err: errors.New("x")})
	if !strings.Contains(got, "tabung recover") || !strings.Contains(got, "01JABC") {
		t.Fatalf("partial message lacks recovery hint: %q", got)
	}
}
