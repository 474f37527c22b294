package ledger

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFeeRounding(t *testing.T) {
	cases := []struct {
		amount   string
		from, to AccountType
		want     string
	}{
		{"100", Savings, Current, "2"},
		{"100", Current, Savings, "3"},
		{"0.25", Savings, Current, "0.01"},
		{"0.10", Current, Savings, "0"},
		{"33.33", Current, Savings, "1"},
		{"1000", Current, Current, "0"},
	}
	for _, tc := range cases {
		got := DefaultFees.Fee(decimal.RequireFromString(tc.amount), tc.from, tc.to)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Fee(%s, %s->%s)=%s, want %s", tc.amount, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDrawAccountNumberRange(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	lengths := map[int]int{}
	for i := 0; i < 5000; i++ {
		s := drawAccountNumber(r)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			t.Fatalf("not numeric: %q", s)
		}
		if n < minAccountNumber || n > 999_999_999 {
			t.Fatalf("out of range: %d", n)
		}
		lengths[len(s)]++
	}
	for _, l := range []int{7, 8, 9} {
		if lengths[l] == 0 {
			t.Fatalf("no %d-digit numbers drawn: %v", l, lengths)
		}
	}
}

func TestParseAccountType(t *testing.T) {
	for in, want := range map[string]AccountType{"Savings": Savings, "CURRENT": Current, " savings ": Savings} {
		got, err := ParseAccountType(in)
		if err != nil || got != want {
			t.Fatalf("ParseAccountType(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseAccountType("fixed"); err == nil {
		t.Fatal("expected error")
	}
}
