package ledger

import (
	"context"
	"math/rand"
	"strconv"
)

const (
	minAccountNumber   = 1_000_000
	maxNumberAttempts  = 100
	minAccountDigits   = 7
	accountDigitChoice = 3 // 7, 8 or 9 digits
)

// drawAccountNumber picks a length in [7,9], fills it with uniform digits and
// lifts draws with leading zeros back into 7-digit range.
func drawAccountNumber(r *rand.Rand) string {
	digits := minAccountDigits + r.Intn(accountDigitChoice)
	var n int64
	for i := 0; i < digits; i++ {
		n = n*10 + int64(r.Intn(10))
	}
	if n < minAccountNumber {
		n += minAccountNumber
	}
	return strconv.FormatInt(n, 10)
}

// generateAccountNumber draws until it finds a number absent from the index.
// The generator is seeded once per Ledger, so back-to-back calls never replay
// the same sequence.
func (l *Ledger) generateAccountNumber(ctx context.Context) (string, error) {
	l.rndMu.Lock()
	defer l.rndMu.Unlock()

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		n := drawAccountNumber(l.rnd)
		taken, err := l.store.Contains(ctx, n)
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
	}
	return "", ErrGenerationExhausted
}
