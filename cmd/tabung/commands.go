package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tabung.org/internal/ledger"
	"tabung.org/internal/validate"
)

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func (a *app) info(ctx context.Context) error {
	n, err := a.ledger.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tabung ledger %s\n", version)
	fmt.Fprintf(a.out, "Date: %s\n", time.Now().Format("Monday, 02 January 2006"))
	fmt.Fprintf(a.out, "Accounts on file: %d\n", n)
	return nil
}

func (a *app) open(ctx context.Context, args []string) error {
	fs := newFlags("open")
	name := fs.String("name", "", "account holder name")
	id := fs.String("id", "", "identity document number")
	typ := fs.String("type", "Savings", "Savings or Current")
	pin := fs.String("pin", "", "four digit PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := ledger.ParseAccountType(*typ)
	if err != nil {
		return err
	}
	acc, err := a.ledger.OpenAccount(ctx, *name, *id, t, *pin)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s opened for %s (%s)\n", acc.Number, acc.Name, acc.Type)
	return nil
}

func (a *app) close(ctx context.Context, args []string) error {
	fs := newFlags("close")
	number := fs.String("account", "", "account number")
	id4 := fs.String("id4", "", "last four characters of the ID number")
	pin := fs.String("pin", "", "four digit PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ledger.CloseAccount(ctx, *number, *id4, *pin); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s closed\n", *number)
	return nil
}

// moneyFlags parses the account/pin/amount trio shared by deposit and withdraw.
func moneyFlags(name string, args []string) (number, pin string, amount decimal.Decimal, err error) {
	fs := newFlags(name)
	n := fs.String("account", "", "account number")
	p := fs.String("pin", "", "four digit PIN")
	amt := fs.String("amount", "", "amount in RM")
	if err = fs.Parse(args); err != nil {
		return "", "", decimal.Zero, err
	}
	amount, err = validate.ParseAmount(*amt)
	return *n, *p, amount, err
}

func (a *app) deposit(ctx context.Context, args []string) error {
	number, pin, amount, err := moneyFlags("deposit", args)
	if err != nil {
		return err
	}
	bal, err := a.ledger.Deposit(ctx, number, pin, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deposited %s. New balance: %s\n", ledger.Ringgit(amount), ledger.Ringgit(bal))
	return nil
}

func (a *app) withdraw(ctx context.Context, args []string) error {
	number, pin, amount, err := moneyFlags("withdraw", args)
	if err != nil {
		return err
	}
	bal, err := a.ledger.Withdraw(ctx, number, pin, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Withdrew %s. New balance: %s\n", ledger.Ringgit(amount), ledger.Ringgit(bal))
	return nil
}

func (a *app) remit(ctx context.Context, args []string) error {
	fs := newFlags("remit")
	from := fs.String("from", "", "sender account number")
	pin := fs.String("pin", "", "sender PIN")
	to := fs.String("to", "", "receiver account number")
	amt := fs.String("amount", "", "amount in RM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := validate.ParseAmount(*amt)
	if err != nil {
		return err
	}
	res, err := a.ledger.Remit(ctx, *from, *pin, *to, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent %s to %s (fee %s, total %s). New balance: %s\n",
		ledger.Ringgit(res.Amount), res.Receiver, ledger.Ringgit(res.Fee), ledger.Ringgit(res.Total), ledger.Ringgit(res.SenderBalance))
	return nil
}

func (a *app) balance(ctx context.Context, args []string) error {
	fs := newFlags("balance")
	number := fs.String("account", "", "account number")
	pin := fs.String("pin", "", "four digit PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acc, err := a.ledger.GetAccount(ctx, *number, *pin)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account: %s\nName: %s\nType: %s\nBalance: %s\n", acc.Number, acc.Name, acc.Type, ledger.Ringgit(acc.Balance))
	return nil
}

func (a *app) list(ctx context.Context) error {
	keys, err := a.ledger.AccountNumbers(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(a.out, k)
	}
	return nil
}

func (a *app) reconcile(ctx context.Context, args []string) error {
	fs := newFlags("reconcile")
	prune := fs.Bool("prune", false, "drop index entries whose record is missing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rep, err := a.ledger.Reconcile(ctx, *prune)
	for _, k := range rep.Pruned {
		fmt.Fprintf(a.out, "pruned: %s\n", k)
	}
	for _, k := range rep.Broken {
		fmt.Fprintf(a.out, "broken: %s\n", k)
	}
	if err != nil {
		return err
	}
	switch len(rep.Pruned) {
	case 0:
		fmt.Fprintln(a.out, "index consistent")
	default:
		fmt.Fprintf(a.out, "index consistent after pruning %d entries\n", len(rep.Pruned))
	}
	return nil
}

func (a *app) recover(ctx context.Context) error {
	n, err := a.ledger.Recover(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d staged remittance(s) replayed\n", n)
	return nil
}
