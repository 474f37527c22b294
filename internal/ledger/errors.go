package ledger

import (
	"errors"
	"fmt"

	"tabung.org/internal/validate"
)

var (
	// ErrAuth covers both a wrong PIN and an account that cannot be loaded.
	ErrAuth                = errors.New("authentication failed")
	ErrNotFound            = errors.New("account not found")
	ErrUnreadable          = errors.New("account record unreadable")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrGenerationExhausted = errors.New("failed to generate a unique account number")
	ErrIndexCorruption     = errors.New("account index and records disagree")
	ErrUnresolvedJournal   = errors.New("staged remittance no longer matches the records")
)

// ValidationError carries the field and reason an input was rejected for.
type ValidationError = validate.Error

// Persistence stages reported in PersistenceError.
const (
	StageSaveRecord   = "save record"
	StageIndexAppend  = "index append"
	StageDeleteRecord = "delete record"
	StageIndexRemove  = "index remove"
	StageStage        = "stage remittance"
	StageSaveSender   = "save sender"
	StageSaveReceiver = "save receiver"
	StageSaveBoth     = "save sender and receiver"
)

// PersistenceError reports a storage failure. No state was changed unless the
// error is wrapped in a PartialRemittanceError.
type PersistenceError struct {
	Stage  string
	Number string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s, account %s): %v", e.Stage, e.Number, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialRemittanceError means the sender was debited but the receiver was not
// credited. Journal names the staged write that Ledger.Recover can replay; it is
// empty when the store keeps no journal.
type PartialRemittanceError struct {
	Result  Remittance
	Journal string
	Err     error
}

func (e *PartialRemittanceError) Error() string {
	msg := fmt.Sprintf("remittance partially applied: %s debited, %s not credited", e.Result.Sender, e.Result.Receiver)
	if e.Journal != "" {
		msg += " (journal " + e.Journal + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *PartialRemittanceError) Unwrap() error { return e.Err }

// CorruptionError marks an account whose record exists in name only: the index
// lists it but the record is absent or cannot be decoded. Callers see it as
// ErrNotFound.
type CorruptionError struct {
	Number string
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("account %s: %v: %v", e.Number, ErrIndexCorruption, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

func (e *CorruptionError) Is(target error) bool {
	return target == ErrNotFound || target == ErrIndexCorruption
}
