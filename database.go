// Package purelite is a cgo-free SQLite client built on the system's
// SQLite library through purego. It offers parameterized queries in
// several result shapes, prepared statements, batch execution, online
// backups with progress reporting and a database/sql driver, without
// requiring a C toolchain.
package purelite

import (
	"fmt"
	"sync"
	"time"
)

// Database is a single connection to a SQLite database. Its query methods
// may be used from multiple goroutines one at a time; Interrupt and the
// accessors are safe to call concurrently with a running query.
type Database struct {
	mu     sync.Mutex
	handle SQLiteDB
	path   string
	closed bool
	trace  func(sql string)
}

// Option configures a connection at open time.
type Option func(*openConfig)

type openConfig struct {
	readOnly    bool
	busyTimeout time.Duration
}

// WithReadOnly opens the database read-only; statements that write fail
// with an engine error.
func WithReadOnly() Option {
	return func(c *openConfig) { c.readOnly = true }
}

// WithBusyTimeout sets the connection's busy timeout at open time, as if
// SetBusyTimeout were called immediately after Open.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeout = d }
}

// Open opens or creates the database at path. The path may be a plain
// filename, ":memory:" for a transient in-memory database, or a file: URI.
// The connection reports extended result codes and allows loading
// extensions.
func Open(path string, opts ...Option) (*Database, error) {
	if err := ensureLib(); err != nil {
		return nil, err
	}
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	flags := SQLITE_OPEN_READWRITE | SQLITE_OPEN_CREATE | SQLITE_OPEN_URI
	if cfg.readOnly {
		flags = SQLITE_OPEN_READONLY | SQLITE_OPEN_URI
	}
	handle, rc := sqlite3_open_v2(path, flags)
	if rc != SQLITE_OK {
		return nil, openFailed(handle, path, rc)
	}
	if rc := sqlite3_extended_result_codes(handle, true); rc != SQLITE_OK {
		return nil, openFailed(handle, path, rc)
	}
	if rc := sqlite3_enable_load_extension(handle, true); rc != SQLITE_OK {
		return nil, openFailed(handle, path, rc)
	}
	db := &Database{handle: handle, path: path}
	if cfg.busyTimeout > 0 {
		if err := db.SetBusyTimeout(cfg.busyTimeout); err != nil {
			sqlite3_close_v2(handle)
			return nil, err
		}
	}
	return db, nil
}

// openFailed turns a failed open into an *OpenError, closing the half-open
// handle that sqlite3_open_v2 returns even on failure.
func openFailed(handle SQLiteDB, path string, rc ResultCode) *OpenError {
	msg := sqlite3_errstr(rc)
	if handle != nil {
		msg = sqlite3_errmsg(handle)
		sqlite3_close_v2(handle)
	}
	return &OpenError{Path: path, Code: rc, Message: msg}
}

// Close releases the connection. It fails, leaving the database open, when
// the engine refuses to close because prepared statements are still open
// or a backup is in flight. Closing a closed database is a no-op.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if rc := sqlite3_close(db.handle); rc != SQLITE_OK {
		return resultError(db.handle, rc)
	}
	db.closed = true
	return nil
}

// Closed reports whether Close has completed.
func (db *Database) Closed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

func (db *Database) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return &UseAfterCloseError{Subject: "database"}
	}
	return nil
}

// Trace installs fn to receive the SQL text of every query immediately
// before it executes, or removes the callback when fn is nil. Batch
// execution is not traced.
func (db *Database) Trace(fn func(sql string)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.trace = fn
}

func (db *Database) callTrace(sql string) {
	db.mu.Lock()
	fn := db.trace
	db.mu.Unlock()
	if fn != nil {
		fn(sql)
	}
}

// Interrupt aborts the connection's in-flight operation. It is safe to
// call from another goroutine; the interrupted query fails with
// *InterruptError at its next step boundary, never mid-row.
func (db *Database) Interrupt() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return
	}
	sqlite3_interrupt(db.handle)
}

// SetBusyTimeout bounds how long an operation waits on a conflicting lock
// before failing with *BusyError. Zero disables the handler, making lock
// conflicts fail immediately.
func (db *Database) SetBusyTimeout(d time.Duration) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if rc := sqlite3_busy_timeout(db.handle, int(d/time.Millisecond)); rc != SQLITE_OK {
		return resultError(db.handle, rc)
	}
	return nil
}

// Filename returns the path of an attached database, the main database by
// default. In-memory and temporary databases return an empty string.
func (db *Database) Filename(name ...string) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ""
	}
	n := "main"
	if len(name) > 0 {
		n = name[0]
	}
	return sqlite3_db_filename(db.handle, n)
}

// LastInsertRowID returns the rowid of the most recent successful insert
// on this connection.
func (db *Database) LastInsertRowID() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0
	}
	return sqlite3_last_insert_rowid(db.handle)
}

// Changes returns the number of rows changed by the most recent statement.
func (db *Database) Changes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0
	}
	return sqlite3_changes(db.handle)
}

// TotalChanges returns the number of rows changed since the connection
// opened.
func (db *Database) TotalChanges() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0
	}
	return sqlite3_total_changes(db.handle)
}

// TransactionActive reports whether the connection is inside an explicit
// transaction.
func (db *Database) TransactionActive() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return false
	}
	return !sqlite3_get_autocommit(db.handle)
}

// ErrCode returns the result code of the most recent failed engine call on
// this connection.
func (db *Database) ErrCode() ResultCode {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return SQLITE_OK
	}
	return sqlite3_errcode(db.handle)
}

// ErrMsg returns the message of the most recent failed engine call on this
// connection.
func (db *Database) ErrMsg() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ""
	}
	return sqlite3_errmsg(db.handle)
}

// ErrOffset returns the byte offset into the SQL text of the most recent
// error, or -1 when the engine did not associate the error with a token.
func (db *Database) ErrOffset() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return -1
	}
	return sqlite3_error_offset(db.handle)
}

// Limit reads one of the connection's per-category limits, optionally
// setting a new value first. The previous value is returned either way.
func (db *Database) Limit(id int, newValue ...int) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	if id < 0 || id > SQLITE_LIMIT_WORKER_THREADS {
		return 0, &SQLError{Code: SQLITE_MISUSE, Message: fmt.Sprintf("invalid limit category %d", id), Offset: -1}
	}
	value := -1
	if len(newValue) > 0 {
		value = newValue[0]
	}
	return sqlite3_limit(db.handle, id, value), nil
}

// Status reads one of the connection's resource counters, returning the
// current value and the high-water mark. reset clears the high-water mark
// where the engine supports that.
func (db *Database) Status(op int, reset ...bool) (int, int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, 0, err
	}
	r := len(reset) > 0 && reset[0]
	current, highwater, rc := sqlite3_db_status(db.handle, op, r)
	if rc != SQLITE_OK {
		return 0, 0, resultError(db.handle, rc)
	}
	return current, highwater, nil
}

// RuntimeStatus reads one of the engine's global resource counters,
// returning the current value and the high-water mark.
func RuntimeStatus(op int, reset ...bool) (int64, int64, error) {
	if err := ensureLib(); err != nil {
		return 0, 0, err
	}
	r := len(reset) > 0 && reset[0]
	current, highwater, rc := sqlite3_status64(op, r)
	if rc != SQLITE_OK {
		return 0, 0, &SQLError{Code: rc, Message: sqlite3_errstr(rc), Offset: -1}
	}
	return current, highwater, nil
}

// LoadExtension loads a runtime-loadable extension from path. entryPoint
// overrides the entry function name the engine derives from the filename.
func (db *Database) LoadExtension(path string, entryPoint ...string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	entry := ""
	if len(entryPoint) > 0 {
		entry = entryPoint[0]
	}
	rc, msg := sqlite3_load_extension(db.handle, path, entry)
	if rc != SQLITE_OK {
		if msg == "" {
			msg = sqlite3_errstr(rc)
		}
		return &SQLError{Code: rc, Message: msg, Offset: -1}
	}
	return nil
}

// SQLiteVersion returns the engine's version string.
func SQLiteVersion() (string, error) {
	if err := ensureLib(); err != nil {
		return "", err
	}
	return sqlite3_libversion(), nil
}

// SQLiteVersionNumber returns the engine's version as a single number in
// the format major*1000000 + minor*1000 + patch.
func SQLiteVersionNumber() (int, error) {
	if err := ensureLib(); err != nil {
		return 0, err
	}
	return sqlite3_libversion_number(), nil
}
