// Package validate holds the pure input checks applied before the ledger
// touches storage: PIN shape, monetary amount shape and identity fields.
package validate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PINLength is the exact number of digits in a PIN.
const PINLength = 4

// Reason identifies why a value was rejected.
type Reason string

const (
	ReasonPINShape         Reason = "pin must be exactly 4 digits"
	ReasonNonPositive      Reason = "amount must be greater than zero"
	ReasonExceedsCap       Reason = "amount exceeds the per-operation limit"
	ReasonExceedsAbsolute  Reason = "amount is too large"
	ReasonTooManyDecimals  Reason = "amount cannot have more than 2 decimal places"
	ReasonUnparsable       Reason = "amount is not a number"
	ReasonTooShort         Reason = "value is too short"
	ReasonBadCharacter     Reason = "value contains a character that is not allowed"
	ReasonSurroundingSpace Reason = "value cannot start or end with a space"
	ReasonAccountType      Reason = "account type must be Savings or Current"
)

// MaxAmount is the absolute ceiling for any single amount.
var MaxAmount = decimal.RequireFromString("999999999.99")

// Error reports the rejected field and the reason.
type Error struct {
	Field  string
	Reason Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func fail(field string, r Reason) error {
	return &Error{Field: field, Reason: r}
}

// PIN accepts exactly four ASCII digits.
func PIN(s string) error {
	if len(s) != PINLength {
		return fail("pin", ReasonPINShape)
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return fail("pin", ReasonPINShape)
		}
	}
	return nil
}

// Amount checks amount against the per-operation cap max and the absolute
// ceiling, and rejects sub-cent precision. Checks run in that order.
func Amount(amount, max decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return fail("amount", ReasonNonPositive)
	case amount.GreaterThan(max):
		return fail("amount", ReasonExceedsCap)
	case amount.GreaterThan(MaxAmount):
		return fail("amount", ReasonExceedsAbsolute)
	}
	return Cents(amount)
}

// Cents rejects amounts carrying more than two decimal places.
func Cents(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(2)) {
		return fail("amount", ReasonTooManyDecimals)
	}
	return nil
}

// ParseAmount turns raw user input into a decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fail("amount", ReasonUnparsable)
	}
	return d, nil
}

// Name requires at least two characters drawn from letters, space, '.' and '-'.
// Spaces are only allowed between other characters.
func Name(s string) error {
	if len(s) < 2 {
		return fail("name", ReasonTooShort)
	}
	if strings.TrimSpace(s) != s {
		return fail("name", ReasonSurroundingSpace)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && c != ' ' && c != '.' && c != '-' {
			return fail("name", ReasonBadCharacter)
		}
	}
	return nil
}

// ID requires at least three characters drawn from letters, digits, '-' and '_'.
func ID(s string) error {
	if len(s) < 3 {
		return fail("id_number", ReasonTooShort)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && !isDigit(c) && c != '-' && c != '_' {
			return fail("id_number", ReasonBadCharacter)
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
