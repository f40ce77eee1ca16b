package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/flock"
	"github.com/ncruces/go-sqlite3"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// SQLiteStore is the durable Store implementation backing the embedded
// key-value store named in §6. Each Family is a table
// ("kv_<family>(key TEXT PRIMARY KEY, value BLOB NOT NULL)"); write batches
// run inside a single "BEGIN IMMEDIATE" transaction, matching the locking
// discipline the teacher documents for its own sqlite storage layer.
//
// A gofrs/flock advisory lock on "<path>.lock" serializes WriteBatch calls
// across separate OS processes sharing the same database file, backstopping
// sqlite's own locking for the "single atomic write batches" guarantee of
// §5.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sqlite3.Conn
	lock *flock.Flock
	path string
}

// OpenSQLiteStore opens (creating if necessary) a depot KV store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlite3.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "opening sqlite store %q", path)
	}
	if err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Internal, err, "enabling WAL mode")
	}
	s := &SQLiteStore{db: db, lock: flock.New(path + ".lock"), path: path}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	for _, f := range AllFamilies {
		stmt := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS kv_%s (key TEXT PRIMARY KEY, value BLOB NOT NULL)`,
			tableSuffix(f))
		if err := s.db.Exec(stmt); err != nil {
			return errs.Wrap(errs.Internal, err, "creating table for family %q", f)
		}
	}
	return nil
}

// tableSuffix sanitizes a family name for use as a SQL identifier suffix.
// Family values are compile-time constants (see AllFamilies), never
// user-controlled, so a simple allow-list check suffices.
func tableSuffix(f Family) string {
	for _, c := range string(f) {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			panic(fmt.Sprintf("kv: invalid family name %q", f))
		}
	}
	return string(f)
}

func (s *SQLiteStore) Get(_ context.Context, family Family, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, _, err := s.db.Prepare(fmt.Sprintf(`SELECT value FROM kv_%s WHERE key = ?`, tableSuffix(family)))
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, err, "preparing get")
	}
	defer stmt.Close()
	stmt.BindText(1, key)
	if !stmt.Step() {
		if err := stmt.Err(); err != nil {
			return nil, false, errs.Wrap(errs.Internal, err, "stepping get")
		}
		return nil, false, nil
	}
	return stmt.ColumnBlob(0, nil), true, nil
}

func (s *SQLiteStore) Put(_ context.Context, family Family, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(family, key, value)
}

func (s *SQLiteStore) putLocked(family Family, key string, value []byte) error {
	stmt, _, err := s.db.Prepare(fmt.Sprintf(
		`INSERT INTO kv_%s(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		tableSuffix(family)))
	if err != nil {
		return errs.Wrap(errs.Internal, err, "preparing put")
	}
	defer stmt.Close()
	stmt.BindText(1, key)
	stmt.BindBlob(2, value)
	if stmt.Step() {
		// no rows expected
	}
	if err := stmt.Err(); err != nil {
		return errs.Wrap(errs.Internal, err, "executing put")
	}
	return nil
}

func (s *SQLiteStore) Delete(_ context.Context, family Family, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(family, key)
}

func (s *SQLiteStore) deleteLocked(family Family, key string) error {
	if err := s.db.Exec(fmt.Sprintf(`DELETE FROM kv_%s WHERE key = ?`, tableSuffix(family)), key); err != nil {
		return errs.Wrap(errs.Internal, err, "executing delete")
	}
	return nil
}

func (s *SQLiteStore) Iterate(_ context.Context, family Family) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, _, err := s.db.Prepare(fmt.Sprintf(`SELECT key, value FROM kv_%s`, tableSuffix(family)))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "preparing iterate")
	}
	defer stmt.Close()

	var out []Entry
	for stmt.Step() {
		out = append(out, Entry{
			Key:   stmt.ColumnText(0),
			Value: stmt.ColumnBlob(1, nil),
		})
	}
	if err := stmt.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "stepping iterate")
	}
	return out, nil
}

// WriteBatch applies every Op inside a single BEGIN IMMEDIATE transaction,
// locked both against other goroutines in this process (s.mu) and other
// processes sharing the database file (s.lock).
func (s *SQLiteStore) WriteBatch(ctx context.Context, ops []Op) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errs.Wrap(errs.Internal, err, "acquiring cross-process write lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.db.Exec(`BEGIN IMMEDIATE`); err != nil {
		return errs.Wrap(errs.Internal, err, "beginning write batch")
	}
	defer func() {
		if err != nil {
			_ = s.db.Exec(`ROLLBACK`)
		}
	}()

	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if err = s.putLocked(op.Family, op.Key, op.Value); err != nil {
				return err
			}
		case OpDelete:
			if err = s.deleteLocked(op.Family, op.Key); err != nil {
				return err
			}
		}
	}

	if err = s.db.Exec(`COMMIT`); err != nil {
		return errs.Wrap(errs.Internal, err, "committing write batch")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
