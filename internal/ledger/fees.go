package ledger

import "github.com/shopspring/decimal"

// FeeSchedule holds remittance fee rates keyed by the (sender, receiver) type
// pair. The fee is charged to the sender only.
type FeeSchedule struct {
	SavingsToCurrent decimal.Decimal
	CurrentToSavings decimal.Decimal
	SameType         decimal.Decimal
}

// DocumentedSameTypeRate is the 1% same-type rate the product documentation
// advertises. Same-type transfers have always been charged nothing, so
// DefaultFees keeps 0 and this value only applies when configured.
var DocumentedSameTypeRate = decimal.RequireFromString("0.01")

// DefaultFees is the schedule the ledger charges unless configured otherwise.
var DefaultFees = FeeSchedule{
	SavingsToCurrent: decimal.RequireFromString("0.02"),
	CurrentToSavings: decimal.RequireFromString("0.03"),
	SameType:         decimal.Zero,
}

// Rate returns the fee rate for a transfer from one account type to another.
func (f FeeSchedule) Rate(from, to AccountType) decimal.Decimal {
	switch {
	case from == Savings && to == Current:
		return f.SavingsToCurrent
	case from == Current && to == Savings:
		return f.CurrentToSavings
	default:
		return f.SameType
	}
}

// Fee is amount times the pair's rate, rounded half away from zero to cents.
func (f FeeSchedule) Fee(amount decimal.Decimal, from, to AccountType) decimal.Decimal {
	return amount.Mul(f.Rate(from, to)).Round(2)
}
