package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tabung.org/internal/audit"
	"tabung.org/internal/config"
	"tabung.org/internal/ledger"
	"tabung.org/internal/obs"
	"tabung.org/internal/store/file"
	"tabung.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const auditFile = "transaction.log"

const usage = `usage: tabung [flags] <command> [args]

commands:
  info                                   date and number of accounts
  open     -name -id -type -pin          open an account
  close    -account -id4 -pin            close an account
  deposit  -account -pin -amount         deposit into an account
  withdraw -account -pin -amount         withdraw from an account
  remit    -from -pin -to -amount        transfer between accounts
  balance  -account -pin                 show an account
  list                                   list account numbers
  reconcile [-prune]                     check the index against the records
  recover                                replay staged remittances
`

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:], os.Stdout))
}

type app struct {
	ledger *ledger.Ledger
	out    io.Writer
}

func run(args []string, out io.Writer) int {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}

	fs := flag.NewFlagSet("tabung", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	var (
		dataDir = fs.String("data", cfg.DataDir, "data directory (TABUNG_DATA_DIR)")
		dsn     = fs.String("dsn", cfg.PGDSN, "PostgreSQL DSN, overrides -data (TABUNG_PG_DSN)")
		verbose = fs.Bool("v", false, "mirror audit events to stderr as JSON")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	obs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = audit.WithSessionID(ctx, uuid.NewString())

	store, closeStore, err := openStore(ctx, *dataDir, *dsn)
	if err != nil {
		log.Printf("open store: %v", err)
		return exitPersistence
	}
	defer closeStore()
	backend := "file"
	if *dsn != "" {
		backend = "postgres"
	}
	obs.SetBuildInfo(version, commit, backend)

	sinks := []audit.Sink{audit.NewFileSink(filepath.Join(*dataDir, auditFile))}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	if *verbose {
		sinks = append(sinks, audit.JSONSink{})
	}
	trail := audit.New(sinks...)
	defer func() {
		if err := trail.Close(); err != nil {
			obs.Warn("audit close failed", map[string]any{"error": err.Error()})
		}
	}()

	fees := ledger.DefaultFees
	fees.SameType = cfg.SameTypeFeeRate
	a := &app{
		ledger: ledger.New(store,
			ledger.WithAudit(trail),
			ledger.WithFeeSchedule(fees),
			ledger.WithAuthLimit(rate.Limit(cfg.AuthRate), cfg.AuthBurst),
		),
		out: out,
	}

	code := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])

	if cfg.MetricsFile != "" {
		if err := obs.WriteTextfile(cfg.MetricsFile); err != nil {
			obs.Warn("metrics textfile not written", map[string]any{"path": cfg.MetricsFile, "error": err.Error()})
		}
	}
	return code
}

// openStore prefers Postgres when a DSN is given and falls back to the flat
// file layout under dataDir. The audit file lives in dataDir either way.
func openStore(ctx context.Context, dataDir, dsn string) (ledger.Store, func(), error) {
	if dsn == "" {
		s, err := file.Open(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, err
	}
	s, err := pg.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) int {
	var err error
	switch cmd {
	case "info":
		err = a.info(ctx)
	case "open":
		err = a.open(ctx, args)
	case "close":
		err = a.close(ctx, args)
	case "deposit":
		err = a.deposit(ctx, args)
	case "withdraw":
		err = a.withdraw(ctx, args)
	case "remit":
		err = a.remit(ctx, args)
	case "balance":
		err = a.balance(ctx, args)
	case "list":
		err = a.list(ctx)
	case "reconcile":
		err = a.reconcile(ctx, args)
	case "recover":
		err = a.recover(ctx)
	default:
		log.Printf("unknown command %q", cmd)
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
	if err == nil {
		return exitOK
	}
	if errors.Is(err, flag.ErrHelp) {
		return exitUsage
	}
	log.Printf("%s: %s", cmd, describe(err))
	return exitCode(err)
}
