package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tabung.org/internal/ids"
	"tabung.org/internal/obs"
	"tabung.org/internal/validate"
)

// Auditor receives one event per completed state change. It must not fail the
// caller: by the time it is called the change is already durable.
type Auditor interface {
	Record(ctx context.Context, event string, fields map[string]any)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, string, map[string]any) {}

// Ledger runs account operations against a Store. It assumes a single writer:
// operations are not meant to overlap.
type Ledger struct {
	store Store
	audit Auditor
	fees  FeeSchedule

	rndMu sync.Mutex
	rnd   *rand.Rand

	authRate  rate.Limit
	authBurst int
	limMu     sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAudit sets the audit sink.
func WithAudit(a Auditor) Option {
	return func(l *Ledger) {
		if a != nil {
			l.audit = a
		}
	}
}

// WithRand replaces the account-number generator source.
func WithRand(r *rand.Rand) Option {
	return func(l *Ledger) {
		if r != nil {
			l.rnd = r
		}
	}
}

// WithFeeSchedule overrides DefaultFees.
func WithFeeSchedule(f FeeSchedule) Option {
	return func(l *Ledger) { l.fees = f }
}

// WithAuthLimit throttles PIN checks per account to r attempts per second with
// the given burst. A zero r leaves attempts unlimited.
func WithAuthLimit(r rate.Limit, burst int) Option {
	return func(l *Ledger) {
		if r > 0 && burst > 0 {
			l.authRate = r
			l.authBurst = burst
		}
	}
}

// New creates a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		audit:    nopAuditor{},
		fees:     DefaultFees,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fees returns the schedule in effect.
func (l *Ledger) Fees() FeeSchedule { return l.fees }

// Authenticate reports whether pin matches the stored PIN. It fails closed when
// the account cannot be loaded.
func (l *Ledger) Authenticate(ctx context.Context, number, pin string) bool {
	_, err := l.authenticate(ctx, number, pin)
	return err == nil
}

func (l *Ledger) authenticate(ctx context.Context, number, pin string) (Account, error) {
	if !l.allowAttempt(number) {
		obs.Warn("pin attempts throttled", map[string]any{"account": number})
		return Account{}, ErrAuth
	}
	acc, err := l.store.Get(ctx, number)
	if err != nil {
		return Account{}, ErrAuth
	}
	if acc.PIN != pin {
		return Account{}, ErrAuth
	}
	return acc, nil
}

func (l *Ledger) allowAttempt(number string) bool {
	if l.authRate == 0 {
		return true
	}
	l.limMu.Lock()
	defer l.limMu.Unlock()
	lim, ok := l.limiters[number]
	if !ok {
		lim = rate.NewLimiter(l.authRate, l.authBurst)
		l.limiters[number] = lim
	}
	return lim.Allow()
}

// load distinguishes a missing record from one that cannot be read. Both count
// as not found for the caller.
func (l *Ledger) load(ctx context.Context, number string) (Account, error) {
	acc, err := l.store.Get(ctx, number)
	switch {
	case err == nil:
		return acc, nil
	case errors.Is(err, ErrNotFound):
		return Account{}, ErrNotFound
	default:
		return Account{}, &CorruptionError{Number: number, Err: err}
	}
}

// OpenAccount validates the identity fields, assigns a fresh account number and
// persists a zero-balance account. The record is removed again if the number
// cannot be added to the index.
func (l *Ledger) OpenAccount(ctx context.Context, name, idNumber string, typ AccountType, pin string) (acc Account, err error) {
	defer l.observe("open", time.Now(), &err)

	if err := validate.Name(name); err != nil {
		return Account{}, err
	}
	if err := validate.ID(idNumber); err != nil {
		return Account{}, err
	}
	if !typ.valid() {
		return Account{}, &ValidationError{Field: "type", Reason: validate.ReasonAccountType}
	}
	if err := validate.PIN(pin); err != nil {
		return Account{}, err
	}

	number, err := l.generateAccountNumber(ctx)
	if err != nil {
		if errors.Is(err, ErrGenerationExhausted) {
			return Account{}, err
		}
		return Account{}, &PersistenceError{Stage: StageIndexAppend, Err: err}
	}

	acc = Account{
		Number:   number,
		Name:     name,
		IDNumber: idNumber,
		Type:     typ,
		PIN:      pin,
		Balance:  decimal.Zero,
	}
	if err := l.store.Put(ctx, acc); err != nil {
		return Account{}, &PersistenceError{Stage: StageSaveRecord, Number: number, Err: err}
	}
	if err := l.store.AppendKey(ctx, number); err != nil {
		if derr := l.store.Delete(ctx, number); derr != nil {
			obs.Warn("orphaned record after failed index append", map[string]any{
				"account": number,
				"error":   derr.Error(),
			})
			obs.RecordInconsistency("orphan_record")
		}
		return Account{}, &PersistenceError{Stage: StageIndexAppend, Number: number, Err: err}
	}

	l.audit.Record(ctx, fmt.Sprintf("Created account %s for %s", number, name), map[string]any{
		"op":      "open",
		"account": number,
		"type":    typ.String(),
	})
	return acc, nil
}

// CloseAccount deletes an account after checking, in order, that it exists,
// that idSuffix equals the last four characters of its ID number and that pin
// is correct. A failure to drop the index entry after the record is gone leaves
// a stale key behind; it is logged and the close still counts as done.
func (l *Ledger) CloseAccount(ctx context.Context, number, idSuffix, pin string) (err error) {
	defer l.observe("close", time.Now(), &err)

	acc, err := l.load(ctx, number)
	if err != nil {
		return err
	}
	id := acc.IDNumber
	if len(id) < 4 || id[len(id)-4:] != idSuffix {
		return ErrAuth
	}
	if _, err := l.authenticate(ctx, number, pin); err != nil {
		return err
	}

	if err := l.store.Delete(ctx, number); err != nil {
		return &PersistenceError{Stage: StageDeleteRecord, Number: number, Err: err}
	}
	if err := l.store.RemoveKey(ctx, number); err != nil {
		obs.Warn("index still lists closed account", map[string]any{
			"account": number,
			"error":   err.Error(),
		})
		obs.RecordInconsistency("stale_index")
	}

	l.audit.Record(ctx, fmt.Sprintf("Deleted account %s", number), map[string]any{
		"op":      "close",
		"account": number,
	})
	return nil
}

// Deposit adds amount to the balance. Amounts are capped at MaxDeposit per call.
func (l *Ledger) Deposit(ctx context.Context, number, pin string, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	defer l.observe("deposit", time.Now(), &err)

	acc, err := l.authenticate(ctx, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	if err := validate.Amount(amount, MaxDeposit); err != nil {
		return decimal.Zero, err
	}

	acc.Balance = acc.Balance.Add(amount)
	if err := l.store.Put(ctx, acc); err != nil {
		return decimal.Zero, &PersistenceError{Stage: StageSaveRecord, Number: number, Err: err}
	}

	l.audit.Record(ctx, fmt.Sprintf("Deposit: Account %s, Amount: %s", number, Ringgit(amount)), map[string]any{
		"op":      "deposit",
		"account": number,
		"amount":  amount.StringFixed(2),
	})
	return acc.Balance, nil
}

// Withdraw removes amount from the balance. Only positivity, cent precision and
// sufficiency are checked; there is no per-operation cap.
func (l *Ledger) Withdraw(ctx context.Context, number, pin string, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	defer l.observe("withdraw", time.Now(), &err)

	acc, err := l.authenticate(ctx, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	if err := checkTransferAmount(amount); err != nil {
		return decimal.Zero, err
	}
	if amount.GreaterThan(acc.Balance) {
		return decimal.Zero, ErrInsufficientFunds
	}

	acc.Balance = acc.Balance.Sub(amount)
	if err := l.store.Put(ctx, acc); err != nil {
		return decimal.Zero, &PersistenceError{Stage: StageSaveRecord, Number: number, Err: err}
	}

	l.audit.Record(ctx, fmt.Sprintf("Withdrawal: Account %s, Amount: %s", number, Ringgit(amount)), map[string]any{
		"op":      "withdraw",
		"account": number,
		"amount":  amount.StringFixed(2),
	})
	return acc.Balance, nil
}

func checkTransferAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: validate.ReasonNonPositive}
	}
	return validate.Cents(amount)
}

// Remit moves amount from sender to receiver and charges the sender the fee for
// the account-type pair. When the store offers a Journal both records are
// staged first; a failure crediting the receiver then yields a
// PartialRemittanceError that Recover can finish.
func (l *Ledger) Remit(ctx context.Context, senderNumber, pin, receiverNumber string, amount decimal.Decimal) (res Remittance, err error) {
	defer l.observe("remit", time.Now(), &err)

	sender, err := l.authenticate(ctx, senderNumber, pin)
	if err != nil {
		return Remittance{}, err
	}
	if senderNumber == receiverNumber {
		return Remittance{}, ErrSameAccount
	}
	receiver, err := l.load(ctx, receiverNumber)
	if err != nil {
		return Remittance{}, err
	}

	fee := l.fees.Fee(amount, sender.Type, receiver.Type)
	total := amount.Add(fee)
	if err := checkTransferAmount(amount); err != nil {
		return Remittance{}, err
	}
	if total.GreaterThan(sender.Balance) {
		return Remittance{}, ErrInsufficientFunds
	}

	debit := Leg{Prior: sender, Next: sender}
	debit.Next.Balance = sender.Balance.Sub(total)
	credit := Leg{Prior: receiver, Next: receiver}
	credit.Next.Balance = receiver.Balance.Add(amount)
	res = Remittance{
		Sender:          senderNumber,
		Receiver:        receiverNumber,
		Amount:          amount,
		Fee:             fee,
		Total:           total,
		SenderBalance:   debit.Next.Balance,
		ReceiverBalance: credit.Next.Balance,
	}

	if err := l.commitPair(ctx, res, debit, credit); err != nil {
		return Remittance{}, err
	}

	l.audit.Record(ctx, fmt.Sprintf("Remittance: From %s to %s, Amount: %s, Fee: %s",
		senderNumber, receiverNumber, Ringgit(amount), Ringgit(fee)), map[string]any{
		"op":       "remit",
		"sender":   senderNumber,
		"receiver": receiverNumber,
		"amount":   amount.StringFixed(2),
		"fee":      fee.StringFixed(2),
	})
	return res, nil
}

// commitPair persists the sender leg then the receiver leg.
func (l *Ledger) commitPair(ctx context.Context, res Remittance, debit, credit Leg) error {
	sender, receiver := debit.Next, credit.Next
	if aw, ok := l.store.(AtomicWriter); ok {
		if err := aw.PutAll(ctx, sender, receiver); err != nil {
			return &PersistenceError{Stage: StageSaveBoth, Number: sender.Number, Err: err}
		}
		return nil
	}

	var journalID string
	j, journaled := l.store.(Journal)
	if journaled {
		journalID = ids.New()
		w := StagedWrite{ID: journalID, Legs: []Leg{debit, credit}}
		if err := j.Stage(ctx, w); err != nil {
			return &PersistenceError{Stage: StageStage, Number: sender.Number, Err: err}
		}
	}

	if err := l.store.Put(ctx, sender); err != nil {
		if journaled {
			l.clearJournal(ctx, j, journalID)
		}
		return &PersistenceError{Stage: StageSaveSender, Number: sender.Number, Err: err}
	}
	if err := l.store.Put(ctx, receiver); err != nil {
		if journaled {
			// The sender leg has landed; only the credit is left to apply.
			w := StagedWrite{ID: journalID, Legs: []Leg{credit}, Outstanding: true}
			if serr := j.Stage(ctx, w); serr != nil {
				obs.Warn("remittance journal not narrowed to receiver", map[string]any{
					"journal": journalID,
					"error":   serr.Error(),
				})
			}
		}
		perr := &PartialRemittanceError{
			Result:  res,
			Journal: journalID,
			Err:     &PersistenceError{Stage: StageSaveReceiver, Number: receiver.Number, Err: err},
		}
		obs.Warn("remittance partially applied", map[string]any{
			"sender":   sender.Number,
			"receiver": receiver.Number,
			"journal":  journalID,
			"error":    err.Error(),
		})
		obs.RecordInconsistency("partial_remittance")
		l.audit.Record(ctx, fmt.Sprintf("Remittance INCOMPLETE: From %s to %s, Amount: %s, Fee: %s, receiver not credited",
			res.Sender, res.Receiver, Ringgit(res.Amount), Ringgit(res.Fee)), map[string]any{
			"op":      "remit_partial",
			"journal": journalID,
		})
		return perr
	}

	if journaled {
		l.clearJournal(ctx, j, journalID)
	}
	return nil
}

func (l *Ledger) clearJournal(ctx context.Context, j Journal, id string) {
	if err := j.Clear(ctx, id); err != nil {
		obs.Warn("remittance journal not cleared", map[string]any{"journal": id, "error": err.Error()})
	}
}

// Recover settles every staged remittance the store still holds and returns
// how many journals were cleared. A leg whose record still has its prior
// balance is written; one already at its next balance is left alone; a leg
// for an account that has since been closed is dropped. Outstanding journals
// are first rebased onto the current balances, so changes made after the
// failure are kept. A journal with a leg that matches neither state is left
// pending and reported through ErrUnresolvedJournal.
func (l *Ledger) Recover(ctx context.Context) (n int, err error) {
	defer l.observe("recover", time.Now(), &err)

	j, ok := l.store.(Journal)
	if !ok {
		return 0, nil
	}
	pending, err := j.Pending(ctx)
	if err != nil {
		return 0, err
	}
	var unresolved []string
	for _, w := range pending {
		settled, err := l.settle(ctx, j, w)
		if err != nil {
			return n, err
		}
		if !settled {
			obs.Warn("remittance journal left unresolved", map[string]any{"journal": w.ID})
			obs.RecordInconsistency("unresolved_journal")
			unresolved = append(unresolved, w.ID)
			continue
		}
		if err := j.Clear(ctx, w.ID); err != nil {
			return n, err
		}
		n++
		fields := map[string]any{"op": "recover", "journal": w.ID}
		if staged, err := ids.Time(w.ID); err == nil {
			fields["staged_at"] = staged.UTC().Format(time.RFC3339)
		}
		l.audit.Record(ctx, fmt.Sprintf("Recovered remittance journal %s", w.ID), fields)
	}
	if len(unresolved) > 0 {
		return n, fmt.Errorf("journal %s: %w", strings.Join(unresolved, ", "), ErrUnresolvedJournal)
	}
	return n, nil
}

// settle applies the legs of w that are still due. Nothing is written unless
// every leg can be settled.
func (l *Ledger) settle(ctx context.Context, j Journal, w StagedWrite) (bool, error) {
	if w.Outstanding {
		rebased, ok, err := l.rebase(ctx, w)
		if err != nil || !ok {
			return false, err
		}
		if err := j.Stage(ctx, rebased); err != nil {
			return false, &PersistenceError{Stage: StageStage, Err: err}
		}
		w = rebased
	}

	var due []Account
	for _, leg := range w.Legs {
		cur, live, err := l.current(ctx, leg.Next.Number)
		if err != nil {
			return false, err
		}
		switch {
		case !live:
			obs.Warn("staged leg dropped for closed account", map[string]any{"journal": w.ID, "account": leg.Next.Number})
		case cur.Balance.Equal(leg.Next.Balance):
		case cur.Balance.Equal(leg.Prior.Balance):
			due = append(due, leg.Next)
		default:
			return false, nil
		}
	}
	for _, acc := range due {
		if err := l.store.Put(ctx, acc); err != nil {
			return false, &PersistenceError{Stage: StageSaveRecord, Number: acc.Number, Err: err}
		}
	}
	return true, nil
}

// rebase turns legs known to be unwritten into legs from the current record
// to the current record plus the staged change. Legs of closed accounts are
// dropped. It reports false when a change would take a balance below zero.
func (l *Ledger) rebase(ctx context.Context, w StagedWrite) (StagedWrite, bool, error) {
	out := StagedWrite{ID: w.ID}
	for _, leg := range w.Legs {
		cur, live, err := l.current(ctx, leg.Next.Number)
		if err != nil {
			return StagedWrite{}, false, err
		}
		if !live {
			obs.Warn("staged leg dropped for closed account", map[string]any{"journal": w.ID, "account": leg.Next.Number})
			continue
		}
		next := cur
		next.Balance = cur.Balance.Add(leg.Next.Balance.Sub(leg.Prior.Balance))
		if next.Balance.IsNegative() {
			return StagedWrite{}, false, nil
		}
		out.Legs = append(out.Legs, Leg{Prior: cur, Next: next})
	}
	return out, true, nil
}

// current loads an account for recovery. live is false when the account is
// no longer indexed or its record is gone.
func (l *Ledger) current(ctx context.Context, number string) (acc Account, live bool, err error) {
	indexed, err := l.store.Contains(ctx, number)
	if err != nil || !indexed {
		return Account{}, false, err
	}
	acc, err = l.load(ctx, number)
	if errors.Is(err, ErrNotFound) && !errors.Is(err, ErrIndexCorruption) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return acc, true, nil
}

// GetAccount returns the account after checking its PIN.
func (l *Ledger) GetAccount(ctx context.Context, number, pin string) (acc Account, err error) {
	defer l.observe("balance", time.Now(), &err)
	return l.authenticate(ctx, number, pin)
}

// AccountNumbers lists every indexed account number in insertion order.
func (l *Ledger) AccountNumbers(ctx context.Context) ([]string, error) {
	return l.store.ListKeys(ctx)
}

// Count returns the number of indexed accounts.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	keys, err := l.store.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ReconcileReport lists the index entries Reconcile found without a loadable
// record. Broken entries are still in the index; Pruned ones were removed.
type ReconcileReport struct {
	Broken []string
	Pruned []string
}

// Reconcile checks every index entry for a loadable record. With prune,
// entries whose record is absent are removed from the index; unreadable
// records are always left for inspection. The error matches
// ErrIndexCorruption while any broken entry remains.
func (l *Ledger) Reconcile(ctx context.Context, prune bool) (rep ReconcileReport, err error) {
	defer l.observe("reconcile", time.Now(), &err)

	keys, err := l.store.ListKeys(ctx)
	if err != nil {
		return rep, err
	}
	for _, k := range keys {
		_, gerr := l.store.Get(ctx, k)
		if gerr == nil {
			continue
		}
		if prune && errors.Is(gerr, ErrNotFound) {
			if err := l.store.RemoveKey(ctx, k); err != nil {
				rep.Broken = append(rep.Broken, k)
				return rep, &PersistenceError{Stage: StageIndexRemove, Number: k, Err: err}
			}
			rep.Pruned = append(rep.Pruned, k)
			l.audit.Record(ctx, fmt.Sprintf("Pruned index entry %s", k), map[string]any{"op": "reconcile", "account": k})
			continue
		}
		rep.Broken = append(rep.Broken, k)
	}
	if len(rep.Broken) > 0 {
		return rep, fmt.Errorf("%d broken index entries: %w", len(rep.Broken), ErrIndexCorruption)
	}
	return rep, nil
}

func (l *Ledger) observe(op string, start time.Time, errp *error) {
	obs.ObserveOperation(op, resultLabel(*errp), time.Since(start))
}

func resultLabel(err error) string {
	var (
		ve *ValidationError
		pe *PartialRemittanceError
		se *PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &pe):
		return "partial"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &se):
		return "persistence"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient"
	case errors.Is(err, ErrSameAccount):
		return "same_account"
	case errors.Is(err, ErrGenerationExhausted):
		return "exhausted"
	case errors.Is(err, ErrIndexCorruption):
		return "corrupt"
	case errors.Is(err, ErrUnresolvedJournal):
		return "unresolved"
	default:
		return "error"
	}
}
