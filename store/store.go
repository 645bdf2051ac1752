// Package store provides the SQLite-backed world store.
//
// Every read and write goes through a scoped transaction obtained from
// Update or View. Both serialize on a single process-wide lock, so a
// transaction always observes every transaction committed before it began.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"github.com/nathoo/asterfall/store/migrations"
	"github.com/nathoo/asterfall/store/sqlitemigrate"
)

// ErrNotConfigured is returned when a nil or closed store is used.
var ErrNotConfigured = errors.New("storage is not configured")

// StorageError reports a lower-level database fault. The enclosing
// transaction has been rolled back when a caller sees it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: oops.In("store").With("op", op).Wrap(err)}
}

// Store is the world store.
type Store struct {
	db  *sqlx.DB
	mu  sync.Mutex
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the SQLite store at path and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The store lock already serializes access; one connection keeps
	// SQLite from reporting SQLITE_BUSY between readers and writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), db.DB, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

type txKey struct{}

// Update runs fn inside a read-write transaction under the store lock.
// All writes made through tx commit together; any error from fn rolls them
// back and is returned unchanged. If ctx already carries a transaction
// from this store, fn joins it instead of starting a new one.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, "update", fn)
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, "view", func(tx *Tx) error {
		tx.readOnly = true
		return fn(tx)
	})
}

func (s *Store) run(ctx context.Context, kind string, fn func(tx *Tx) error) (err error) {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if outer, ok := ctx.Value(txKey{}).(*Tx); ok && outer.store == s {
		if kind == "update" && outer.readOnly {
			return fail("join", errors.New("update inside view"))
		}
		return fn(outer)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	tx := &Tx{store: s, tx: sqlTx}
	tx.ctx = context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if kind == "view" {
		if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fail("rollback", err)
		}
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

// Tx is a scoped transaction. It is only valid inside the callback that
// received it.
type Tx struct {
	ctx      context.Context
	store    *Store
	tx       *sqlx.Tx
	readOnly bool
}

// Context returns a context carrying this transaction. Store calls made
// with it join the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// Now returns the store clock's current time.
func (t *Tx) Now() time.Time {
	return t.store.now()
}

func (t *Tx) get(op string, dest any, query string, args ...any) (bool, error) {
	err := t.tx.GetContext(t.ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fail(op, err)
	}
	return true, nil
}

func (t *Tx) selectRows(op string, dest any, query string, args ...any) error {
	return fail(op, t.tx.SelectContext(t.ctx, dest, query, args...))
}

func (t *Tx) exec(op string, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, fail(op, errors.New("write inside view"))
	}
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, fail(op, err)
	}
	return res, nil
}
