package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tabung.org/internal/ledger"
	"tabung.org/internal/migrate"
	"tabung.org/internal/obs"
)

// migrationFiles holds the versioned schema applied by EnsureSchema and cmd/migrate.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store implements ledger.Store on PostgreSQL. Records live in accounts and
// the index in account_index, ordered by insertion sequence.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Store        = (*Store)(nil)
	_ ledger.AtomicWriter = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Single writer; a small pool is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema applies any pending schema migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	applied, err := migrate.NewManager(s.db, Migrations()).Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	if len(applied) > 0 {
		obs.Info("schema migrated", map[string]any{"applied": applied})
	}
	return nil
}

func (s *Store) Get(ctx context.Context, number string) (ledger.Account, error) {
	var (
		acc     = ledger.Account{Number: number}
		typ     string
		balance decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `
		select name, id_number, account_type, pin, balance
		from accounts where account_number=$1
	`, number).Scan(&acc.Name, &acc.IDNumber, &typ, &acc.PIN, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	acc.Type, err = ledger.ParseAccountType(typ)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("account %s: %w: %v", number, ledger.ErrUnreadable, err)
	}
	acc.Balance = balance
	return acc, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, acc ledger.Account) error {
	_, err := ex.ExecContext(ctx, `
		insert into accounts(account_number, name, id_number, account_type, pin, balance)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (account_number) do update
		set balance = excluded.balance
	`, acc.Number, acc.Name, acc.IDNumber, acc.Type.String(), acc.PIN, acc.Balance.StringFixed(2))
	return err
}

func (s *Store) Put(ctx context.Context, acc ledger.Account) error {
	return upsert(ctx, s.db, acc)
}

// PutAll writes every account in one serializable transaction.
func (s *Store) PutAll(ctx context.Context, accts ...ledger.Account) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, acc := range accts {
		if err := upsert(ctx, tx, acc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, number string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where account_number=$1`, number)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) Contains(ctx context.Context, number string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from account_index where account_number=$1)`, number).Scan(&ok)
	return ok, err
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select account_number from account_index order by seq asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) AppendKey(ctx context.Context, number string) error {
	_, err := s.db.ExecContext(ctx, `insert into account_index(account_number) values ($1)`, number)
	return err
}

func (s *Store) RemoveKey(ctx context.Context, number string) error {
	_, err := s.db.ExecContext(ctx, `delete from account_index where account_number=$1`, number)
	return err
}
