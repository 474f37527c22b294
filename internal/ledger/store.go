package ledger

import "context"

// Store is the persistence contract the ledger runs on. Records and the index
// of account numbers are kept side by side; keeping them in bijection is the
// ledger's job, not the store's.
type Store interface {
	// Get returns ErrNotFound when no record exists and an error matching
	// ErrUnreadable when the record cannot be decoded.
	Get(ctx context.Context, number string) (Account, error)
	Put(ctx context.Context, acc Account) error
	Delete(ctx context.Context, number string) error

	Contains(ctx context.Context, number string) (bool, error)
	ListKeys(ctx context.Context) ([]string, error)
	AppendKey(ctx context.Context, number string) error
	// RemoveKey is all-or-nothing: on error the previous key set is intact.
	RemoveKey(ctx context.Context, number string) error
}

// Leg is one record change inside a staged write: the record as it was read
// and the record to be written.
type Leg struct {
	Prior Account
	Next  Account
}

// StagedWrite is a set of record changes written ahead of a multi-record
// commit. Outstanding means none of the legs has been written yet, whatever
// happened to the accounts since; otherwise any leg may or may not have landed.
type StagedWrite struct {
	ID          string
	Legs        []Leg
	Outstanding bool
}

// Journal is implemented by stores that can stage both legs of a remittance
// before either record is overwritten. Staging an existing ID replaces it.
type Journal interface {
	Stage(ctx context.Context, w StagedWrite) error
	Clear(ctx context.Context, id string) error
	Pending(ctx context.Context) ([]StagedWrite, error)
}

// AtomicWriter is implemented by stores that can write several records in one
// transaction.
type AtomicWriter interface {
	PutAll(ctx context.Context, accts ...Account) error
}
