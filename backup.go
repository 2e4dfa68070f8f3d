package purelite

import "fmt"

// Pages copied per backup step, and the wait before retrying a step that
// found the destination busy or locked.
const (
	backupStepPages = 16
	backupRetryMS   = 100
)

// BackupOption configures a Backup call.
type BackupOption func(*backupConfig)

type backupConfig struct {
	srcName  string
	dstName  string
	progress func(remaining, total int)
}

// WithSrcName selects which attached database to back up. The default is
// "main".
func WithSrcName(name string) BackupOption {
	return func(c *backupConfig) { c.srcName = name }
}

// WithDstName selects which attached database on the destination
// connection to write into. The default is "main".
func WithDstName(name string) BackupOption {
	return func(c *backupConfig) { c.dstName = name }
}

// WithProgress installs a callback invoked after every copy step with the
// pages still to copy and the total page count. On completion it is called
// once more with both numbers equal to the total.
func WithProgress(fn func(remaining, total int)) BackupOption {
	return func(c *backupConfig) { c.progress = fn }
}

// Backup streams an online copy of the database into dst, which is either
// an open *Database, borrowed for the duration of the call, or a string
// path that is opened here and closed again before Backup returns. The
// copy proceeds in small fixed-size page steps so reads and writes on the
// source connection interleave fairly with it. A busy or locked
// destination is retried without a cap; a contended backup is bounded by
// calling Interrupt on the source connection.
func (db *Database) Backup(dst any, opts ...BackupOption) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	cfg := backupConfig{srcName: "main", dstName: "main"}
	for _, opt := range opts {
		opt(&cfg)
	}

	var dstHandle SQLiteDB
	owned := false
	switch d := dst.(type) {
	case *Database:
		if err := d.checkOpen(); err != nil {
			return err
		}
		dstHandle = d.handle
	case string:
		handle, rc := sqlite3_open_v2(d, SQLITE_OPEN_READWRITE|SQLITE_OPEN_CREATE|SQLITE_OPEN_URI)
		if rc != SQLITE_OK {
			msg := sqlite3_errstr(rc)
			if handle != nil {
				msg = sqlite3_errmsg(handle)
				sqlite3_close_v2(handle)
			}
			return &BackupError{Code: rc, Message: msg}
		}
		dstHandle = handle
		owned = true
	default:
		return &BackupError{Code: SQLITE_MISUSE, Message: fmt.Sprintf("destination must be a *Database or a path, not %T", dst)}
	}
	if owned {
		defer sqlite3_close_v2(dstHandle)
	}

	b := sqlite3_backup_init(dstHandle, cfg.dstName, db.handle, cfg.srcName)
	if b == nil {
		return &BackupError{Code: sqlite3_extended_errcode(dstHandle), Message: sqlite3_errmsg(dstHandle)}
	}
	defer sqlite3_backup_finish(b)

	for {
		switch rc := sqlite3_backup_step(b, backupStepPages); rc.Primary() {
		case SQLITE_OK:
			if cfg.progress != nil {
				cfg.progress(sqlite3_backup_remaining(b), sqlite3_backup_pagecount(b))
			}
		case SQLITE_BUSY, SQLITE_LOCKED:
			sqlite3_sleep(backupRetryMS)
		case SQLITE_DONE:
			if cfg.progress != nil {
				total := sqlite3_backup_pagecount(b)
				cfg.progress(total, total)
			}
			return nil
		default:
			return &BackupError{Code: rc, Message: sqlite3_errstr(rc)}
		}
	}
}
