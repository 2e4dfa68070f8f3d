package purelite

import "fmt"

// OpenError reports a failure to open or configure a database connection.
type OpenError struct {
	Path    string
	Code    ResultCode
	Message string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("purelite: open %s: %s", e.Path, e.Message)
}

// SQLError reports a compile-time or runtime SQL failure. Code is the
// engine's extended result code. Offset is a byte offset into the SQL text
// of the failing token, or -1 when the engine did not report one.
type SQLError struct {
	Code    ResultCode
	Message string
	Offset  int
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("purelite: %s (%d)", e.Message, e.Code)
}

// BindError reports a parameter binding failure: more positional values than
// placeholders, a value of an unsupported type, or an out-of-range integer.
// Index is the 1-based parameter position when known, Name the parameter
// name when the statement declares one.
type BindError struct {
	Index   int
	Name    string
	Message string
}

func (e *BindError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("purelite: bind %s: %s", e.Name, e.Message)
	case e.Index > 0:
		return fmt.Sprintf("purelite: bind parameter %d: %s", e.Index, e.Message)
	default:
		return "purelite: bind: " + e.Message
	}
}

// BusyError reports lock contention that outlasted the busy timeout.
type BusyError struct {
	Message string
}

func (e *BusyError) Error() string { return "purelite: " + e.Message }

// InterruptError reports a query aborted by Interrupt.
type InterruptError struct{}

func (e *InterruptError) Error() string { return "purelite: operation interrupted" }

// BackupError reports a backup init, step, or finish failure.
type BackupError struct {
	Code    ResultCode
	Message string
}

func (e *BackupError) Error() string { return "purelite: backup: " + e.Message }

// UseAfterCloseError reports an operation on a closed database or a
// finalized statement. Subject is "database" or "statement".
type UseAfterCloseError struct {
	Subject string
}

func (e *UseAfterCloseError) Error() string {
	return "purelite: " + e.Subject + " is closed"
}

// resultError converts a non-OK engine result on db into the matching typed
// error. Busy and locked conditions become *BusyError, interrupts become
// *InterruptError, everything else *SQLError carrying the extended code,
// message and SQL byte offset read back from the connection.
func resultError(db SQLiteDB, rc ResultCode) error {
	switch rc.Primary() {
	case SQLITE_OK, SQLITE_ROW, SQLITE_DONE:
		return nil
	case SQLITE_BUSY, SQLITE_LOCKED:
		return &BusyError{Message: sqlite3_errmsg(db)}
	case SQLITE_INTERRUPT:
		return &InterruptError{}
	default:
		return &SQLError{
			Code:    sqlite3_extended_errcode(db),
			Message: sqlite3_errmsg(db),
			Offset:  sqlite3_error_offset(db),
		}
	}
}
