package purelite

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// seedPages grows the database past a single copy step.
func seedPages(t *testing.T, db *Database) int {
	t.Helper()
	if _, err := db.Execute("CREATE TABLE chunks (id INTEGER PRIMARY KEY, data BLOB)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	n, err := db.ExecuteBatch("INSERT INTO chunks (data) VALUES (randomblob(4000))",
		make([]any, 64))
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return n
}

func TestBackupToPath(t *testing.T) {
	requireLibLoaded(t)

	dir := t.TempDir()
	src, err := Open(filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer src.Close()
	rows := seedPages(t, src)

	dstPath := filepath.Join(dir, "dst.db")
	var calls [][2]int
	err = src.Backup(dstPath, WithProgress(func(remaining, total int) {
		calls = append(calls, [2]int{remaining, total})
	}))
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if len(calls) < 2 {
		t.Fatalf("expected several progress steps, got %v", calls)
	}
	last := calls[len(calls)-1]
	if last[0] != last[1] {
		t.Fatalf("expected the final call to report (total, total), got %v", last)
	}
	for _, c := range calls[:len(calls)-1] {
		if c[0] >= c[1] {
			t.Fatalf("expected remaining below total mid-copy, got %v", c)
		}
	}

	dst, err := Open(dstPath)
	if err != nil {
		t.Fatalf("open of the copy failed: %v", err)
	}
	defer dst.Close()
	v, err := dst.QueryValue("SELECT count(*) FROM chunks")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if v != int64(rows) {
		t.Fatalf("expected %d rows in the copy, got %v", rows, v)
	}
	pages, err := dst.QueryValue("PRAGMA page_count")
	if err != nil {
		t.Fatalf("pragma failed: %v", err)
	}
	if pages != int64(last[1]) {
		t.Fatalf("expected the reported total %d to match the page count %v", last[1], pages)
	}
}

func TestBackupToOpenDatabase(t *testing.T) {
	requireLibLoaded(t)

	dir := t.TempDir()
	src, err := Open(filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer src.Close()
	if _, err := src.Execute("CREATE TABLE t (x); INSERT INTO t VALUES (1), (2)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	dst, err := Open(filepath.Join(dir, "dst.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dst.Close()

	if err := src.Backup(dst); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	// a borrowed destination stays open and readable
	if dst.Closed() {
		t.Fatalf("expected the destination to stay open")
	}
	v, err := dst.QueryValue("SELECT count(*) FROM t")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if v != int64(2) {
		t.Fatalf("expected 2 rows, got %v", v)
	}
}

func TestBackupInMemorySource(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Execute("CREATE TABLE t (x); INSERT INTO t VALUES (42)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snapshot.db")
	if err := db.Backup(path, WithSrcName("main"), WithDstName("main")); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	snap, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer snap.Close()
	if v, err := snap.QueryValue("SELECT x FROM t"); err != nil || v != int64(42) {
		t.Fatalf("unexpected snapshot content: %v %v", v, err)
	}
}

func TestBackupErrors(t *testing.T) {
	db := openTestDB(t)

	err := db.Backup(42)
	var backupErr *BackupError
	if !errors.As(err, &backupErr) {
		t.Fatalf("expected *BackupError, got %T: %v", err, err)
	}
	if !strings.Contains(backupErr.Message, "int") {
		t.Fatalf("expected the offending type in %q", backupErr.Message)
	}

	err = db.Backup(filepath.Join(t.TempDir(), "no", "such", "dir", "dst.db"))
	if !errors.As(err, &backupErr) {
		t.Fatalf("expected *BackupError for an unwritable path, got %T: %v", err, err)
	}

	// backing up a database into itself is rejected by the engine
	err = db.Backup(db)
	if !errors.As(err, &backupErr) {
		t.Fatalf("expected *BackupError for a self-backup, got %T: %v", err, err)
	}

	closed, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := closed.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	var closedErr *UseAfterCloseError
	if err := closed.Backup(":memory:"); !errors.As(err, &closedErr) {
		t.Fatalf("expected *UseAfterCloseError, got %T: %v", err, err)
	}
}
