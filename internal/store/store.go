package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrBusy is surfaced after retries on transient lock contention are
// exhausted. Callers may retry reads idempotently; writes should abort.
var ErrBusy = errors.New("store busy")

const (
	busyRetries = 3
	busyBackoff = 50 * time.Millisecond
)

// Conn exposes parameterized query execution over a database handle. All
// values are bound positionally by the driver; SQL text is never built from
// user input.
type Conn struct {
	db *gorm.DB
}

// Store is the process-wide database handle. Transactions are opened
// explicitly via Transaction; plain calls run in autocommit mode.
type Store struct {
	Conn
}

// Tx is a scoped transaction handle supporting the same operations as Store
// plus explicit Commit and Rollback.
type Tx struct {
	Conn
}

// Open opens (or creates) the sqlite database at path. The path may be any
// sqlite DSN, including in-memory forms used by tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	return &Store{Conn{db: db}}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// QueryOne scans the first row of the query into dest. The second return
// value reports whether a row was found.
func (c *Conn) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	var found bool
	err := withRetry(func() error {
		res := c.db.WithContext(ctx).Raw(query, args...).Scan(dest)
		if res.Error != nil {
			return res.Error
		}
		found = res.RowsAffected > 0
		return nil
	})
	return found, err
}

// QueryAll scans every row of the query into dest, which must be a pointer
// to a slice.
func (c *Conn) QueryAll(ctx context.Context, dest any, query string, args ...any) error {
	return withRetry(func() error {
		return c.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
	})
}

// Execute runs a statement and returns the number of affected rows.
func (c *Conn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	var rows int64
	err := withRetry(func() error {
		res := c.db.WithContext(ctx).Exec(query, args...)
		if res.Error != nil {
			return res.Error
		}
		rows = res.RowsAffected
		return nil
	})
	return rows, err
}

// LastInsertID returns the row id assigned by the most recent insert on this
// connection. Only meaningful inside a transaction.
func (c *Conn) LastInsertID(ctx context.Context) (int64, error) {
	var id int64
	err := withRetry(func() error {
		return c.db.WithContext(ctx).Raw("SELECT last_insert_rowid()").Scan(&id).Error
	})
	return id, err
}

// Begin opens an explicit transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	var tx *gorm.DB
	err := withRetry(func() error {
		tx = s.db.WithContext(ctx).Begin()
		return tx.Error
	})
	if err != nil {
		return nil, err
	}
	return &Tx{Conn{db: tx}}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return withRetry(func() error {
		return t.db.Commit().Error
	})
}

// Rollback aborts the transaction. Rolling back an already finished
// transaction is a no-op.
func (t *Tx) Rollback() error {
	err := t.db.Rollback().Error
	if err != nil && errors.Is(err, gorm.ErrInvalidTransaction) {
		return nil
	}
	return err
}

// Transaction runs fn inside a single transaction, committing when fn
// returns nil and rolling back otherwise. A panic in fn rolls back and
// re-panics.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// withRetry retries op on transient sqlite lock errors, then maps the final
// failure to ErrBusy.
func withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff)
	}
	return fmt.Errorf("%w: %v", ErrBusy, err)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
