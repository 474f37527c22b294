package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"tabung.org/internal/validate"
)

// AccountType is fixed when an account is opened.
type AccountType int

const (
	Savings AccountType = iota
	Current
)

func (t AccountType) String() string {
	switch t {
	case Savings:
		return "Savings"
	case Current:
		return "Current"
	default:
		return "Unknown"
	}
}

func (t AccountType) valid() bool { return t == Savings || t == Current }

// ParseAccountType accepts "Savings" or "Current" in any case.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "savings":
		return Savings, nil
	case "current":
		return Current, nil
	}
	return 0, &ValidationError{Field: "type", Reason: validate.ReasonAccountType}
}

// Account is one persisted ledger record. Only Balance changes after opening.
type Account struct {
	Number   string          `json:"account_number"`
	Name     string          `json:"name"`
	IDNumber string          `json:"id_number"`
	Type     AccountType     `json:"type"`
	PIN      string          `json:"-"`
	Balance  decimal.Decimal `json:"balance"`
}

// Remittance is the outcome of a completed transfer.
type Remittance struct {
	Sender          string          `json:"sender"`
	Receiver        string          `json:"receiver"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Total           decimal.Decimal `json:"total"`
	SenderBalance   decimal.Decimal `json:"sender_balance"`
	ReceiverBalance decimal.Decimal `json:"receiver_balance"`
}

// MaxDeposit caps a single deposit.
var MaxDeposit = decimal.NewFromInt(50_000)

// Ringgit renders an amount the way audit lines and receipts show it.
func Ringgit(d decimal.Decimal) string {
	return "RM" + d.StringFixed(2)
}
