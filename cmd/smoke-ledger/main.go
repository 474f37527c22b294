package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tabung.org/internal/audit"
	"tabung.org/internal/ledger"
	"tabung.org/internal/store/file"
)

func main() {
	log.SetFlags(0)

	dir, err := os.MkdirTemp("", "tabung-smoke-*")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	if os.Getenv("TABUNG_SMOKE_KEEP") == "" {
		defer os.RemoveAll(dir)
	}

	store, err := file.Open(dir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	trail := audit.New(audit.NewFileSink(filepath.Join(dir, "transaction.log")))
	defer trail.Close()
	l := ledger.New(store, ledger.WithAudit(trail))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accA, err := l.OpenAccount(ctx, "Smoke Sender", "SMOKE-0001", ledger.Savings, "1111")
	if err != nil {
		log.Fatalf("open account A: %v", err)
	}
	accB, err := l.OpenAccount(ctx, "Smoke Receiver", "SMOKE-0002", ledger.Current, "2222")
	if err != nil {
		log.Fatalf("open account B: %v", err)
	}

	if _, err := l.Deposit(ctx, accA.Number, "1111", decimal.NewFromInt(1_000)); err != nil {
		log.Fatalf("deposit: %v", err)
	}
	amount := decimal.RequireFromString("420.00")
	res, err := l.Remit(ctx, accA.Number, "1111", accB.Number, amount)
	if err != nil {
		log.Fatalf("remit: %v", err)
	}

	gotA, err := l.GetAccount(ctx, accA.Number, "1111")
	if err != nil {
		log.Fatalf("balance A: %v", err)
	}
	gotB, err := l.GetAccount(ctx, accB.Number, "2222")
	if err != nil {
		log.Fatalf("balance B: %v", err)
	}

	// Savings to Current carries a 2% fee, which leaves the ledger.
	wantFee := decimal.RequireFromString("8.40")
	if !res.Fee.Equal(wantFee) {
		log.Fatalf("unexpected fee %s", res.Fee)
	}
	total := gotA.Balance.Add(gotB.Balance).Add(res.Fee)
	if !total.Equal(decimal.NewFromInt(1_000)) {
		log.Fatalf("ledger conservation failed: %s + %s + fee %s", gotA.Balance, gotB.Balance, res.Fee)
	}
	if !gotB.Balance.Equal(amount) {
		log.Fatalf("unexpected receiver balance %s", gotB.Balance)
	}

	if _, err := l.Withdraw(ctx, accB.Number, "2222", amount); err != nil {
		log.Fatalf("withdraw: %v", err)
	}
	if err := l.CloseAccount(ctx, accB.Number, "0002", "2222"); err != nil {
		log.Fatalf("close: %v", err)
	}
	if rep, err := l.Reconcile(ctx, false); err != nil {
		log.Fatalf("reconcile: %v (broken %v)", err, rep.Broken)
	}
	if n, err := l.Count(ctx); err != nil || n != 1 {
		log.Fatalf("expected one account left, got %d (%v)", n, err)
	}

	fmt.Printf("ledger smoke test passed: accounts=%s,%s dir=%s\n", accA.Number, accB.Number, dir)
}
