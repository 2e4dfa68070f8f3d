package purelite

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// helper to open an in-memory database through the public API
func openTestDB(t *testing.T) *Database {
	t.Helper()
	requireLibLoaded(t)

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCloseCycle(t *testing.T) {
	requireLibLoaded(t)

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if db.Closed() {
		t.Fatalf("expected an open database")
	}
	if _, err := db.Execute("CREATE TABLE t (x); INSERT INTO t VALUES (42)"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !db.Closed() {
		t.Fatalf("expected a closed database")
	}
	if err := db.Close(); err != nil {
		t.Fatalf("closing a closed database should be a no-op, got %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	v, err := db.QueryValue("SELECT x FROM t")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if v != int64(42) {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestOpenFailure(t *testing.T) {
	requireLibLoaded(t)

	_, err := Open(filepath.Join(t.TempDir(), "missing", "nested", "test.db"))
	if err == nil {
		t.Fatalf("expected an open error")
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %T: %v", err, err)
	}
	if openErr.Message == "" {
		t.Fatalf("expected a message on the open error")
	}
}

func TestOpenReadOnly(t *testing.T) {
	requireLibLoaded(t)

	path := filepath.Join(t.TempDir(), "ro.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := db.Execute("CREATE TABLE t (x); INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	ro, err := Open(path, WithReadOnly())
	if err != nil {
		t.Fatalf("read-only open failed: %v", err)
	}
	defer ro.Close()

	if v, err := ro.QueryValue("SELECT x FROM t"); err != nil || v != int64(1) {
		t.Fatalf("read on a read-only database failed: %v %v", v, err)
	}
	_, err = ro.Execute("INSERT INTO t VALUES (2)")
	var sqlErr *SQLError
	if !errors.As(err, &sqlErr) {
		t.Fatalf("expected *SQLError writing to a read-only database, got %T: %v", err, err)
	}

	// opening a missing file read-only must not create it
	_, err = Open(filepath.Join(t.TempDir(), "absent.db"), WithReadOnly())
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %T: %v", err, err)
	}
}

func TestAccessors(t *testing.T) {
	requireLibLoaded(t)

	path := filepath.Join(t.TempDir(), "acc.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if got := db.Filename(); !strings.HasSuffix(got, "acc.db") {
		t.Fatalf("unexpected filename %q", got)
	}
	if _, err := db.Execute("CREATE TABLE t (x)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := db.Execute("INSERT INTO t VALUES (?)", i); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if got := db.LastInsertRowID(); got != int64(i) {
			t.Fatalf("expected rowid %d, got %d", i, got)
		}
	}
	if got := db.Changes(); got != 1 {
		t.Fatalf("expected 1 change, got %d", got)
	}
	if got := db.TotalChanges(); got != 3 {
		t.Fatalf("expected 3 total changes, got %d", got)
	}

	if db.TransactionActive() {
		t.Fatalf("expected autocommit outside a transaction")
	}
	if _, err := db.Execute("BEGIN"); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if !db.TransactionActive() {
		t.Fatalf("expected an active transaction after BEGIN")
	}
	if _, err := db.Execute("COMMIT"); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if db.TransactionActive() {
		t.Fatalf("expected autocommit after COMMIT")
	}
}

func TestErrCodeAndMessage(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Query("SELECT * FROM missing_table")
	var sqlErr *SQLError
	if !errors.As(err, &sqlErr) {
		t.Fatalf("expected *SQLError, got %T: %v", err, err)
	}
	if !strings.Contains(sqlErr.Message, "missing_table") {
		t.Fatalf("unexpected message %q", sqlErr.Message)
	}
	if db.ErrCode() == SQLITE_OK {
		t.Fatalf("expected a sticky error code")
	}
	if db.ErrMsg() == "" {
		t.Fatalf("expected a sticky error message")
	}
	if off := db.ErrOffset(); off < -1 {
		t.Fatalf("unexpected error offset %d", off)
	}
}

func TestTrace(t *testing.T) {
	db := openTestDB(t)

	var mu sync.Mutex
	var traced []string
	db.Trace(func(sql string) {
		mu.Lock()
		traced = append(traced, sql)
		mu.Unlock()
	})

	if _, err := db.Execute("CREATE TABLE t (x)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := db.Query("  SELECT * FROM t  "); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	// batch execution is not traced
	if _, err := db.ExecuteBatch("INSERT INTO t VALUES (?)", []any{[]any{1}}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	mu.Lock()
	got := append([]string(nil), traced...)
	mu.Unlock()
	want := []string{"CREATE TABLE t (x)", "SELECT * FROM t"}
	if len(got) != len(want) {
		t.Fatalf("expected %d traced statements, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("traced[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}

	db.Trace(nil)
	if _, err := db.Query("SELECT 1"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	mu.Lock()
	after := len(traced)
	mu.Unlock()
	if after != len(want) {
		t.Fatalf("expected the removed callback to stay silent")
	}
}

func TestInterruptFromAnotherGoroutine(t *testing.T) {
	db := openTestDB(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		db.Interrupt()
	}()

	_, err := db.QueryValue("WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM c) SELECT count(*) FROM c")
	var interrupted *InterruptError
	if !errors.As(err, &interrupted) {
		t.Fatalf("expected *InterruptError, got %T: %v", err, err)
	}

	// the connection stays usable after an interrupt
	if v, err := db.QueryValue("SELECT 7"); err != nil || v != int64(7) {
		t.Fatalf("query after interrupt failed: %v %v", v, err)
	}
}

func TestBusyTimeout(t *testing.T) {
	requireLibLoaded(t)

	path := filepath.Join(t.TempDir(), "busy.db")
	writer, err := Open(path)
	if err != nil {
		t.Fatalf("open writer failed: %v", err)
	}
	defer writer.Close()
	if _, err := writer.Execute("CREATE TABLE t (x)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reader, err := Open(path, WithBusyTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("open reader failed: %v", err)
	}
	defer reader.Close()

	if _, err := writer.Execute("BEGIN EXCLUSIVE"); err != nil {
		t.Fatalf("begin exclusive failed: %v", err)
	}
	start := time.Now()
	_, err = reader.Execute("INSERT INTO t VALUES (1)")
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected *BusyError, got %T: %v", err, err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("expected the busy handler to wait before giving up")
	}
	if _, err := writer.Execute("COMMIT"); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := reader.Execute("INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("insert after commit failed: %v", err)
	}
}

func TestLimit(t *testing.T) {
	db := openTestDB(t)

	current, err := db.Limit(SQLITE_LIMIT_VARIABLE_NUMBER)
	if err != nil {
		t.Fatalf("limit read failed: %v", err)
	}
	if current <= 0 {
		t.Fatalf("unexpected limit %d", current)
	}
	prev, err := db.Limit(SQLITE_LIMIT_VARIABLE_NUMBER, 50)
	if err != nil {
		t.Fatalf("limit set failed: %v", err)
	}
	if prev != current {
		t.Fatalf("expected previous value %d, got %d", current, prev)
	}
	now, err := db.Limit(SQLITE_LIMIT_VARIABLE_NUMBER)
	if err != nil {
		t.Fatalf("limit read failed: %v", err)
	}
	if now != 50 {
		t.Fatalf("expected 50, got %d", now)
	}

	// a query exceeding the lowered limit fails to compile
	params := make([]string, 51)
	for i := range params {
		params[i] = "?"
	}
	if _, err := db.Query("SELECT " + strings.Join(params, ",")); err == nil {
		t.Fatalf("expected a compile error past the variable limit")
	}

	if _, err := db.Limit(99); err == nil {
		t.Fatalf("expected an error for an invalid limit category")
	}
}

func TestStatusCounters(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Execute("CREATE TABLE t (x)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	used, _, err := db.Status(SQLITE_DBSTATUS_SCHEMA_USED)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if used <= 0 {
		t.Fatalf("expected schema memory in use, got %d", used)
	}

	current, highwater, err := RuntimeStatus(SQLITE_STATUS_MEMORY_USED)
	if err != nil {
		t.Fatalf("runtime status failed: %v", err)
	}
	if current < 0 || highwater < current {
		t.Fatalf("implausible counters: current=%d highwater=%d", current, highwater)
	}
}

func TestVersions(t *testing.T) {
	requireLibLoaded(t)

	v, err := SQLiteVersion()
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(v, "3.") {
		t.Fatalf("unexpected version %q", v)
	}
	n, err := SQLiteVersionNumber()
	if err != nil {
		t.Fatalf("version number failed: %v", err)
	}
	if n < 3000000 {
		t.Fatalf("unexpected version number %d", n)
	}
}

func TestUseAfterClose(t *testing.T) {
	requireLibLoaded(t)

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	var closed *UseAfterCloseError
	if _, err := db.Query("SELECT 1"); !errors.As(err, &closed) {
		t.Fatalf("expected *UseAfterCloseError, got %T: %v", err, err)
	}
	if closed.Subject != "database" {
		t.Fatalf("unexpected subject %q", closed.Subject)
	}
	if _, err := db.Prepare("SELECT 1"); !errors.As(err, &closed) {
		t.Fatalf("expected *UseAfterCloseError from Prepare, got %T: %v", err, err)
	}
	if err := db.Backup(":memory:"); !errors.As(err, &closed) {
		t.Fatalf("expected *UseAfterCloseError from Backup, got %T: %v", err, err)
	}

	// accessors degrade to zero values instead of touching the handle
	if got := db.LastInsertRowID(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := db.Filename(); got != "" {
		t.Fatalf("expected empty filename, got %q", got)
	}
	db.Interrupt()
}
