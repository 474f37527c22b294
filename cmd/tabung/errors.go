package main

import (
	"errors"

	"tabung.org/internal/ledger"
)

const (
	exitOK          = 0
	exitRejected    = 1
	exitUsage       = 2
	exitPersistence = 3
	exitPartial     = 4
)

// exitCode maps engine errors onto process exit statuses. Rejections leave
// storage untouched; the higher codes mean an operator should look at the data.
func exitCode(err error) int {
	var (
		partial *ledger.PartialRemittanceError
		persist *ledger.PersistenceError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &partial):
		return exitPartial
	case errors.As(err, &persist), errors.Is(err, ledger.ErrIndexCorruption), errors.Is(err, ledger.ErrUnresolvedJournal):
		return exitPersistence
	default:
		return exitRejected
	}
}

// describe turns an engine error into the line shown to the operator.
func describe(err error) string {
	var (
		ve      *ledger.ValidationError
		partial *ledger.PartialRemittanceError
	)
	switch {
	case errors.As(err, &partial):
		msg := "the sender was debited but the receiver was not credited"
		if partial.Journal != "" {
			msg += "; run `tabung recover` to finish journal " + partial.Journal
		}
		return msg
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ledger.ErrUnresolvedJournal):
		return err.Error() + "; the accounts changed since staging and need a manual check"
	case errors.Is(err, ledger.ErrAuth):
		return "invalid account number or PIN"
	case errors.Is(err, ledger.ErrIndexCorruption):
		return err.Error()
	case errors.Is(err, ledger.ErrNotFound):
		return "account not found"
	default:
		return err.Error()
	}
}
