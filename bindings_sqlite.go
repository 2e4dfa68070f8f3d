package purelite

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// define all necessary constants first

// ResultCode is a primary or extended SQLite result code. Extended codes
// embed the primary code in their low byte.
type ResultCode int32

const (
	SQLITE_OK         ResultCode = 0
	SQLITE_ERROR      ResultCode = 1
	SQLITE_INTERNAL   ResultCode = 2
	SQLITE_PERM       ResultCode = 3
	SQLITE_ABORT      ResultCode = 4
	SQLITE_BUSY       ResultCode = 5
	SQLITE_LOCKED     ResultCode = 6
	SQLITE_NOMEM      ResultCode = 7
	SQLITE_READONLY   ResultCode = 8
	SQLITE_INTERRUPT  ResultCode = 9
	SQLITE_IOERR      ResultCode = 10
	SQLITE_CORRUPT    ResultCode = 11
	SQLITE_NOTFOUND   ResultCode = 12
	SQLITE_FULL       ResultCode = 13
	SQLITE_CANTOPEN   ResultCode = 14
	SQLITE_PROTOCOL   ResultCode = 15
	SQLITE_EMPTY      ResultCode = 16
	SQLITE_SCHEMA     ResultCode = 17
	SQLITE_TOOBIG     ResultCode = 18
	SQLITE_CONSTRAINT ResultCode = 19
	SQLITE_MISMATCH   ResultCode = 20
	SQLITE_MISUSE     ResultCode = 21
	SQLITE_NOLFS      ResultCode = 22
	SQLITE_AUTH       ResultCode = 23
	SQLITE_FORMAT     ResultCode = 24
	SQLITE_RANGE      ResultCode = 25
	SQLITE_NOTADB     ResultCode = 26
	SQLITE_NOTICE     ResultCode = 27
	SQLITE_WARNING    ResultCode = 28
	SQLITE_ROW        ResultCode = 100
	SQLITE_DONE       ResultCode = 101
)

// Primary returns the primary result code of a possibly extended code.
func (c ResultCode) Primary() ResultCode { return c & 0xff }

// ColumnType is the runtime datatype of a column value in the current row.
type ColumnType int32

const (
	SQLITE_INTEGER ColumnType = 1
	SQLITE_FLOAT   ColumnType = 2
	SQLITE_TEXT    ColumnType = 3
	SQLITE_BLOB    ColumnType = 4
	SQLITE_NULL    ColumnType = 5
)

// OpenFlags are passed to sqlite3_open_v2.
type OpenFlags int32

const (
	SQLITE_OPEN_READONLY     OpenFlags = 0x00000001
	SQLITE_OPEN_READWRITE    OpenFlags = 0x00000002
	SQLITE_OPEN_CREATE       OpenFlags = 0x00000004
	SQLITE_OPEN_URI          OpenFlags = 0x00000040
	SQLITE_OPEN_MEMORY       OpenFlags = 0x00000080
	SQLITE_OPEN_NOMUTEX      OpenFlags = 0x00008000
	SQLITE_OPEN_FULLMUTEX    OpenFlags = 0x00010000
	SQLITE_OPEN_SHAREDCACHE  OpenFlags = 0x00020000
	SQLITE_OPEN_PRIVATECACHE OpenFlags = 0x00040000
	SQLITE_OPEN_NOFOLLOW     OpenFlags = 0x01000000
	SQLITE_OPEN_EXRESCODE    OpenFlags = 0x02000000
)

// Limit categories for Database.Limit. Opaque engine-defined integers,
// passed through unchanged.
const (
	SQLITE_LIMIT_LENGTH              = 0
	SQLITE_LIMIT_SQL_LENGTH          = 1
	SQLITE_LIMIT_COLUMN              = 2
	SQLITE_LIMIT_EXPR_DEPTH          = 3
	SQLITE_LIMIT_COMPOUND_SELECT     = 4
	SQLITE_LIMIT_VDBE_OP             = 5
	SQLITE_LIMIT_FUNCTION_ARG        = 6
	SQLITE_LIMIT_ATTACHED            = 7
	SQLITE_LIMIT_LIKE_PATTERN_LENGTH = 8
	SQLITE_LIMIT_VARIABLE_NUMBER     = 9
	SQLITE_LIMIT_TRIGGER_DEPTH       = 10
	SQLITE_LIMIT_WORKER_THREADS      = 11
)

// Global status operations for RuntimeStatus.
const (
	SQLITE_STATUS_MEMORY_USED        = 0
	SQLITE_STATUS_PAGECACHE_USED     = 1
	SQLITE_STATUS_PAGECACHE_OVERFLOW = 2
	SQLITE_STATUS_MALLOC_SIZE        = 5
	SQLITE_STATUS_PARSER_STACK       = 6
	SQLITE_STATUS_PAGECACHE_SIZE     = 7
	SQLITE_STATUS_MALLOC_COUNT       = 9
)

// Per-connection status operations for Database.Status.
const (
	SQLITE_DBSTATUS_LOOKASIDE_USED      = 0
	SQLITE_DBSTATUS_CACHE_USED          = 1
	SQLITE_DBSTATUS_SCHEMA_USED         = 2
	SQLITE_DBSTATUS_STMT_USED           = 3
	SQLITE_DBSTATUS_LOOKASIDE_HIT       = 4
	SQLITE_DBSTATUS_LOOKASIDE_MISS_SIZE = 5
	SQLITE_DBSTATUS_LOOKASIDE_MISS_FULL = 6
	SQLITE_DBSTATUS_CACHE_HIT           = 7
	SQLITE_DBSTATUS_CACHE_MISS          = 8
	SQLITE_DBSTATUS_CACHE_WRITE         = 9
	SQLITE_DBSTATUS_DEFERRED_FKS        = 10
	SQLITE_DBSTATUS_CACHE_USED_SHARED   = 11
	SQLITE_DBSTATUS_CACHE_SPILL         = 12
)

// define opaque pointers as-is and accept them as exact arguments
type sqlite3_db_t struct{}
type sqlite3_stmt_t struct{}
type sqlite3_backup_t struct{}

type SQLiteDB *sqlite3_db_t
type SQLiteStmt *sqlite3_stmt_t
type SQLiteBackup *sqlite3_backup_t

// define all necessary private C typedefs
// private C typedefs MUST be low level types (e.g. uintptr, numbers)
type sqlite_code_t int32
type sqlite_column_type_t int32

// sqlite_transient is the SQLITE_TRANSIENT destructor value ((void*)-1);
// it makes the engine take its own copy of bound text/blob memory during
// the bind call.
const sqlite_transient = ^uintptr(0)

// then, define C extern methods
var (
	// always pass opaque handles as unsafe.Pointer - never mix them with
	// exported public types

	// const char *sqlite3_libversion(void)
	c_sqlite3_libversion func() unsafe.Pointer

	// int sqlite3_libversion_number(void)
	c_sqlite3_libversion_number func() int32

	c_sqlite3_open_v2 func(
		filename string, // const char* (UTF-8)
		ppDb unsafe.Pointer, // sqlite3**
		flags int32,
		zVfs uintptr, // const char* | NULL
	) sqlite_code_t

	c_sqlite3_close func(
		db unsafe.Pointer, // sqlite3*
	) sqlite_code_t

	c_sqlite3_close_v2 func(
		db unsafe.Pointer, // sqlite3*
	) sqlite_code_t

	c_sqlite3_extended_result_codes func(
		db unsafe.Pointer,
		onoff int32,
	) sqlite_code_t

	c_sqlite3_enable_load_extension func(
		db unsafe.Pointer,
		onoff int32,
	) sqlite_code_t

	c_sqlite3_load_extension func(
		db unsafe.Pointer,
		file string, // const char*
		proc uintptr, // const char* | NULL
		errMsg unsafe.Pointer, // char** - must be freed with sqlite3_free
	) sqlite_code_t

	// void sqlite3_free(void*)
	c_sqlite3_free func(p unsafe.Pointer)

	// const char *sqlite3_errmsg(sqlite3*) - owned by the engine, do not free
	c_sqlite3_errmsg func(db unsafe.Pointer) unsafe.Pointer

	// const char *sqlite3_errstr(int) - static storage
	c_sqlite3_errstr func(code int32) unsafe.Pointer

	c_sqlite3_errcode func(db unsafe.Pointer) sqlite_code_t

	c_sqlite3_extended_errcode func(db unsafe.Pointer) sqlite_code_t

	// int sqlite3_error_offset(sqlite3*) - 3.38+, registered only when the
	// loaded library exports it; call sites must treat nil as "no offsets"
	c_sqlite3_error_offset func(db unsafe.Pointer) int32

	c_sqlite3_prepare_v2 func(
		db unsafe.Pointer, // sqlite3*
		zSql unsafe.Pointer, // const char* - caller-owned buffer, pzTail points into it
		nByte int32,
		ppStmt unsafe.Pointer, // sqlite3_stmt**
		pzTail unsafe.Pointer, // const char**
	) sqlite_code_t

	c_sqlite3_step func(
		stmt unsafe.Pointer, // sqlite3_stmt*
	) sqlite_code_t

	c_sqlite3_reset func(stmt unsafe.Pointer) sqlite_code_t

	c_sqlite3_clear_bindings func(stmt unsafe.Pointer) sqlite_code_t

	c_sqlite3_finalize func(stmt unsafe.Pointer) sqlite_code_t

	c_sqlite3_bind_parameter_count func(stmt unsafe.Pointer) int32

	// const char *sqlite3_bind_parameter_name(sqlite3_stmt*, int) - NULL for ?
	c_sqlite3_bind_parameter_name func(stmt unsafe.Pointer, index int32) unsafe.Pointer

	c_sqlite3_bind_parameter_index func(stmt unsafe.Pointer, name string) int32

	c_sqlite3_bind_null func(stmt unsafe.Pointer, index int32) sqlite_code_t

	c_sqlite3_bind_int64 func(stmt unsafe.Pointer, index int32, value int64) sqlite_code_t

	c_sqlite3_bind_double func(stmt unsafe.Pointer, index int32, value float64) sqlite_code_t

	c_sqlite3_bind_text func(
		stmt unsafe.Pointer,
		index int32,
		value unsafe.Pointer, // const char* - non-NULL even for ""
		n int32,
		destructor uintptr, // sqlite_transient
	) sqlite_code_t

	c_sqlite3_bind_blob func(
		stmt unsafe.Pointer,
		index int32,
		value unsafe.Pointer, // const void* - non-NULL even for zero length
		n int32,
		destructor uintptr, // sqlite_transient
	) sqlite_code_t

	c_sqlite3_column_count func(stmt unsafe.Pointer) int32

	// const char *sqlite3_column_name(sqlite3_stmt*, int) - valid until the
	// next call on the same statement, copy immediately
	c_sqlite3_column_name func(stmt unsafe.Pointer, index int32) unsafe.Pointer

	c_sqlite3_column_type func(stmt unsafe.Pointer, index int32) sqlite_column_type_t

	c_sqlite3_column_int64 func(stmt unsafe.Pointer, index int32) int64

	c_sqlite3_column_double func(stmt unsafe.Pointer, index int32) float64

	// const unsigned char *sqlite3_column_text(sqlite3_stmt*, int)
	c_sqlite3_column_text func(stmt unsafe.Pointer, index int32) unsafe.Pointer

	// const void *sqlite3_column_blob(sqlite3_stmt*, int)
	c_sqlite3_column_blob func(stmt unsafe.Pointer, index int32) unsafe.Pointer

	c_sqlite3_column_bytes func(stmt unsafe.Pointer, index int32) int32

	// const char *sqlite3_column_decltype(sqlite3_stmt*, int) - NULL for
	// expressions
	c_sqlite3_column_decltype func(stmt unsafe.Pointer, index int32) unsafe.Pointer

	c_sqlite3_last_insert_rowid func(db unsafe.Pointer) int64

	c_sqlite3_changes func(db unsafe.Pointer) int32

	c_sqlite3_total_changes func(db unsafe.Pointer) int32

	c_sqlite3_get_autocommit func(db unsafe.Pointer) int32

	// const char *sqlite3_db_filename(sqlite3*, const char*) - NULL for an
	// unknown schema name, "" for a temporary or in-memory database
	c_sqlite3_db_filename func(db unsafe.Pointer, name string) unsafe.Pointer

	c_sqlite3_busy_timeout func(db unsafe.Pointer, ms int32) sqlite_code_t

	// void sqlite3_interrupt(sqlite3*) - safe to call from another thread
	c_sqlite3_interrupt func(db unsafe.Pointer)

	c_sqlite3_limit func(db unsafe.Pointer, id int32, newVal int32) int32

	c_sqlite3_db_status func(
		db unsafe.Pointer,
		op int32,
		cur unsafe.Pointer, // int*
		hwm unsafe.Pointer, // int*
		reset int32,
	) sqlite_code_t

	c_sqlite3_status64 func(
		op int32,
		cur unsafe.Pointer, // sqlite3_int64*
		hwm unsafe.Pointer, // sqlite3_int64*
		reset int32,
	) sqlite_code_t

	// int sqlite3_sleep(int ms)
	c_sqlite3_sleep func(ms int32) int32

	// sqlite3_backup *sqlite3_backup_init(sqlite3 *dst, const char *dstName,
	//                                     sqlite3 *src, const char *srcName)
	c_sqlite3_backup_init func(
		dst unsafe.Pointer,
		dstName string,
		src unsafe.Pointer,
		srcName string,
	) unsafe.Pointer

	c_sqlite3_backup_step func(b unsafe.Pointer, nPage int32) sqlite_code_t

	c_sqlite3_backup_remaining func(b unsafe.Pointer) int32

	c_sqlite3_backup_pagecount func(b unsafe.Pointer) int32

	c_sqlite3_backup_finish func(b unsafe.Pointer) sqlite_code_t
)

// implement a function to register extern methods from loaded lib
// DO NOT load lib - as it will be done externally
func register_sqlite3(handle uintptr) error {
	purego.RegisterLibFunc(&c_sqlite3_libversion, handle, "sqlite3_libversion")
	purego.RegisterLibFunc(&c_sqlite3_libversion_number, handle, "sqlite3_libversion_number")
	purego.RegisterLibFunc(&c_sqlite3_open_v2, handle, "sqlite3_open_v2")
	purego.RegisterLibFunc(&c_sqlite3_close, handle, "sqlite3_close")
	purego.RegisterLibFunc(&c_sqlite3_close_v2, handle, "sqlite3_close_v2")
	purego.RegisterLibFunc(&c_sqlite3_extended_result_codes, handle, "sqlite3_extended_result_codes")
	purego.RegisterLibFunc(&c_sqlite3_enable_load_extension, handle, "sqlite3_enable_load_extension")
	purego.RegisterLibFunc(&c_sqlite3_load_extension, handle, "sqlite3_load_extension")
	purego.RegisterLibFunc(&c_sqlite3_free, handle, "sqlite3_free")
	purego.RegisterLibFunc(&c_sqlite3_errmsg, handle, "sqlite3_errmsg")
	purego.RegisterLibFunc(&c_sqlite3_errstr, handle, "sqlite3_errstr")
	purego.RegisterLibFunc(&c_sqlite3_errcode, handle, "sqlite3_errcode")
	purego.RegisterLibFunc(&c_sqlite3_extended_errcode, handle, "sqlite3_extended_errcode")
	purego.RegisterLibFunc(&c_sqlite3_prepare_v2, handle, "sqlite3_prepare_v2")
	purego.RegisterLibFunc(&c_sqlite3_step, handle, "sqlite3_step")
	purego.RegisterLibFunc(&c_sqlite3_reset, handle, "sqlite3_reset")
	purego.RegisterLibFunc(&c_sqlite3_clear_bindings, handle, "sqlite3_clear_bindings")
	purego.RegisterLibFunc(&c_sqlite3_finalize, handle, "sqlite3_finalize")
	purego.RegisterLibFunc(&c_sqlite3_bind_parameter_count, handle, "sqlite3_bind_parameter_count")
	purego.RegisterLibFunc(&c_sqlite3_bind_parameter_name, handle, "sqlite3_bind_parameter_name")
	purego.RegisterLibFunc(&c_sqlite3_bind_parameter_index, handle, "sqlite3_bind_parameter_index")
	purego.RegisterLibFunc(&c_sqlite3_bind_null, handle, "sqlite3_bind_null")
	purego.RegisterLibFunc(&c_sqlite3_bind_int64, handle, "sqlite3_bind_int64")
	purego.RegisterLibFunc(&c_sqlite3_bind_double, handle, "sqlite3_bind_double")
	purego.RegisterLibFunc(&c_sqlite3_bind_text, handle, "sqlite3_bind_text")
	purego.RegisterLibFunc(&c_sqlite3_bind_blob, handle, "sqlite3_bind_blob")
	purego.RegisterLibFunc(&c_sqlite3_column_count, handle, "sqlite3_column_count")
	purego.RegisterLibFunc(&c_sqlite3_column_name, handle, "sqlite3_column_name")
	purego.RegisterLibFunc(&c_sqlite3_column_type, handle, "sqlite3_column_type")
	purego.RegisterLibFunc(&c_sqlite3_column_int64, handle, "sqlite3_column_int64")
	purego.RegisterLibFunc(&c_sqlite3_column_double, handle, "sqlite3_column_double")
	purego.RegisterLibFunc(&c_sqlite3_column_text, handle, "sqlite3_column_text")
	purego.RegisterLibFunc(&c_sqlite3_column_blob, handle, "sqlite3_column_blob")
	purego.RegisterLibFunc(&c_sqlite3_column_bytes, handle, "sqlite3_column_bytes")
	purego.RegisterLibFunc(&c_sqlite3_column_decltype, handle, "sqlite3_column_decltype")
	purego.RegisterLibFunc(&c_sqlite3_last_insert_rowid, handle, "sqlite3_last_insert_rowid")
	purego.RegisterLibFunc(&c_sqlite3_changes, handle, "sqlite3_changes")
	purego.RegisterLibFunc(&c_sqlite3_total_changes, handle, "sqlite3_total_changes")
	purego.RegisterLibFunc(&c_sqlite3_get_autocommit, handle, "sqlite3_get_autocommit")
	purego.RegisterLibFunc(&c_sqlite3_db_filename, handle, "sqlite3_db_filename")
	purego.RegisterLibFunc(&c_sqlite3_busy_timeout, handle, "sqlite3_busy_timeout")
	purego.RegisterLibFunc(&c_sqlite3_interrupt, handle, "sqlite3_interrupt")
	purego.RegisterLibFunc(&c_sqlite3_limit, handle, "sqlite3_limit")
	purego.RegisterLibFunc(&c_sqlite3_db_status, handle, "sqlite3_db_status")
	purego.RegisterLibFunc(&c_sqlite3_status64, handle, "sqlite3_status64")
	purego.RegisterLibFunc(&c_sqlite3_sleep, handle, "sqlite3_sleep")
	purego.RegisterLibFunc(&c_sqlite3_backup_init, handle, "sqlite3_backup_init")
	purego.RegisterLibFunc(&c_sqlite3_backup_step, handle, "sqlite3_backup_step")
	purego.RegisterLibFunc(&c_sqlite3_backup_remaining, handle, "sqlite3_backup_remaining")
	purego.RegisterLibFunc(&c_sqlite3_backup_pagecount, handle, "sqlite3_backup_pagecount")
	purego.RegisterLibFunc(&c_sqlite3_backup_finish, handle, "sqlite3_backup_finish")

	// Symbols newer than the oldest system libraries still in circulation
	// are resolved individually instead of letting RegisterLibFunc panic.
	if sym, err := dlsym(handle, "sqlite3_error_offset"); err == nil && sym != 0 {
		purego.RegisterFunc(&c_sqlite3_error_offset, sym)
	}
	return nil
}

// Helpers

func copyCString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	// Determine length
	n := 0
	for {
		b := *(*byte)(unsafe.Add(p, n))
		if b == 0 {
			break
		}
		n++
	}
	if n == 0 {
		return ""
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = *(*byte)(unsafe.Add(p, i))
	}
	return string(buf)
}

func copyCBytes(p unsafe.Pointer, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = *(*byte)(unsafe.Add(p, i))
	}
	return out
}

func cStringPtr(s string) (ptr unsafe.Pointer, keepAlive func()) {
	// Allocate Go memory with null terminator; valid during the call
	if len(s) == 0 {
		return nil, func() {}
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return unsafe.Pointer(&b[0]), func() { runtime.KeepAlive(b) }
}

func readErrorAndFree(errPtr unsafe.Pointer) string {
	if errPtr == nil {
		return ""
	}
	defer c_sqlite3_free(errPtr)
	return copyCString(errPtr)
}

// placeholderByte backs zero-length text/blob binds; the engine requires a
// non-NULL pointer to distinguish an empty value from NULL.
var placeholderByte = []byte{0}

// Go wrappers over imported C bindings

/** Return the run-time library version string */
func sqlite3_libversion() string {
	return copyCString(c_sqlite3_libversion())
}

/** Return the run-time library version number (e.g. 3045001) */
func sqlite3_libversion_number() int {
	return int(c_sqlite3_libversion_number())
}

/** Open a database file
 * On failure the half-open handle is still returned so the caller can read
 * the error message before closing it
 */
func sqlite3_open_v2(filename string, flags OpenFlags) (SQLiteDB, ResultCode) {
	var db SQLiteDB
	code := c_sqlite3_open_v2(filename, unsafe.Pointer(&db), int32(flags), 0)
	return db, ResultCode(code)
}

/** Close a database handle
 * Fails with SQLITE_BUSY while prepared statements remain unfinalized
 */
func sqlite3_close(db SQLiteDB) ResultCode {
	return ResultCode(c_sqlite3_close(unsafe.Pointer(db)))
}

/** Close a database handle, deferring teardown until outstanding statements
 * are finalized
 */
func sqlite3_close_v2(db SQLiteDB) ResultCode {
	return ResultCode(c_sqlite3_close_v2(unsafe.Pointer(db)))
}

/** Enable or disable extended result codes */
func sqlite3_extended_result_codes(db SQLiteDB, on bool) ResultCode {
	var flag int32
	if on {
		flag = 1
	}
	return ResultCode(c_sqlite3_extended_result_codes(unsafe.Pointer(db), flag))
}

/** Enable or disable extension loading via sqlite3_load_extension */
func sqlite3_enable_load_extension(db SQLiteDB, on bool) ResultCode {
	var flag int32
	if on {
		flag = 1
	}
	return ResultCode(c_sqlite3_enable_load_extension(unsafe.Pointer(db), flag))
}

/** Load a shared-library extension
 * entryPoint may be empty to use the extension's default entry point
 */
func sqlite3_load_extension(db SQLiteDB, path, entryPoint string) (ResultCode, string) {
	var procPtr unsafe.Pointer
	keep := func() {}
	if entryPoint != "" {
		procPtr, keep = cStringPtr(entryPoint)
	}
	var cerr unsafe.Pointer
	code := c_sqlite3_load_extension(unsafe.Pointer(db), path, uintptr(procPtr), unsafe.Pointer(&cerr))
	keep()
	return ResultCode(code), readErrorAndFree(cerr)
}

/** Return the English-language message for the most recent failed call */
func sqlite3_errmsg(db SQLiteDB) string {
	return copyCString(c_sqlite3_errmsg(unsafe.Pointer(db)))
}

/** Return the English-language description of a result code */
func sqlite3_errstr(code ResultCode) string {
	return copyCString(c_sqlite3_errstr(int32(code)))
}

/** Return the primary result code of the most recent failed call */
func sqlite3_errcode(db SQLiteDB) ResultCode {
	return ResultCode(c_sqlite3_errcode(unsafe.Pointer(db)))
}

/** Return the extended result code of the most recent failed call */
func sqlite3_extended_errcode(db SQLiteDB) ResultCode {
	return ResultCode(c_sqlite3_extended_errcode(unsafe.Pointer(db)))
}

/** Return the byte offset into the SQL of the most recent error, or -1 when
 * unknown or when the loaded library predates offset reporting
 */
func sqlite3_error_offset(db SQLiteDB) int {
	if c_sqlite3_error_offset == nil {
		return -1
	}
	return int(c_sqlite3_error_offset(unsafe.Pointer(db)))
}

/** Compile the first statement in sql
 * Returns the compiled statement (nil when sql holds no statement, e.g. only
 * whitespace or comments) and the uncompiled tail of the string
 */
func sqlite3_prepare_v2(db SQLiteDB, sql string) (SQLiteStmt, string, ResultCode) {
	buf := make([]byte, len(sql)+1)
	copy(buf, sql)
	base := unsafe.Pointer(&buf[0])
	var stmt SQLiteStmt
	var tail uintptr
	code := c_sqlite3_prepare_v2(
		unsafe.Pointer(db),
		base,
		int32(len(buf)),
		unsafe.Pointer(&stmt),
		unsafe.Pointer(&tail),
	)
	runtime.KeepAlive(buf)
	if ResultCode(code) != SQLITE_OK {
		return nil, "", ResultCode(code)
	}
	// pzTail points into buf; convert it to an offset in the Go string
	off := len(sql)
	if tail != 0 {
		if o := int(tail - uintptr(base)); o >= 0 && o <= len(sql) {
			off = o
		}
	}
	return stmt, sql[off:], SQLITE_OK
}

/** Advance a statement one step
 * Returns SQLITE_ROW when a row is available, SQLITE_DONE on completion, or
 * an error code (SQLITE_BUSY past the busy timeout, SQLITE_INTERRUPT after
 * sqlite3_interrupt)
 */
func sqlite3_step(stmt SQLiteStmt) ResultCode {
	return ResultCode(c_sqlite3_step(unsafe.Pointer(stmt)))
}

/** Reset a statement so it can be stepped again; bindings are retained */
func sqlite3_reset(stmt SQLiteStmt) ResultCode {
	return ResultCode(c_sqlite3_reset(unsafe.Pointer(stmt)))
}

/** Reset all parameter bindings to NULL */
func sqlite3_clear_bindings(stmt SQLiteStmt) ResultCode {
	return ResultCode(c_sqlite3_clear_bindings(unsafe.Pointer(stmt)))
}

/** Destroy a statement
 * Must be called exactly once for every successfully prepared statement
 */
func sqlite3_finalize(stmt SQLiteStmt) ResultCode {
	return ResultCode(c_sqlite3_finalize(unsafe.Pointer(stmt)))
}

/** Return the index of the largest parameter in a statement */
func sqlite3_bind_parameter_count(stmt SQLiteStmt) int {
	return int(c_sqlite3_bind_parameter_count(unsafe.Pointer(stmt)))
}

/** Return the name of a parameter, prefix included (":name", "@name",
 * "$name"), or "" for nameless ? parameters
 */
func sqlite3_bind_parameter_name(stmt SQLiteStmt, index int) string {
	return copyCString(c_sqlite3_bind_parameter_name(unsafe.Pointer(stmt), int32(index)))
}

/** Return the index of a named parameter, or 0 when no such name exists */
func sqlite3_bind_parameter_index(stmt SQLiteStmt, name string) int {
	return int(c_sqlite3_bind_parameter_index(unsafe.Pointer(stmt), name))
}

/** Bind NULL at a 1-based parameter index */
func sqlite3_bind_null(stmt SQLiteStmt, index int) ResultCode {
	return ResultCode(c_sqlite3_bind_null(unsafe.Pointer(stmt), int32(index)))
}

/** Bind an INTEGER at a 1-based parameter index */
func sqlite3_bind_int64(stmt SQLiteStmt, index int, value int64) ResultCode {
	return ResultCode(c_sqlite3_bind_int64(unsafe.Pointer(stmt), int32(index), value))
}

/** Bind a FLOAT at a 1-based parameter index */
func sqlite3_bind_double(stmt SQLiteStmt, index int, value float64) ResultCode {
	return ResultCode(c_sqlite3_bind_double(unsafe.Pointer(stmt), int32(index), value))
}

/** Bind TEXT at a 1-based parameter index
 * The engine copies the bytes during the call; length is exact, embedded
 * zero bytes included
 */
func sqlite3_bind_text(stmt SQLiteStmt, index int, value string) ResultCode {
	b := placeholderByte
	if len(value) > 0 {
		b = make([]byte, len(value)+1)
		copy(b, value)
	}
	code := c_sqlite3_bind_text(unsafe.Pointer(stmt), int32(index), unsafe.Pointer(&b[0]), int32(len(value)), sqlite_transient)
	runtime.KeepAlive(b)
	return ResultCode(code)
}

/** Bind a BLOB at a 1-based parameter index
 * A non-NULL pointer is passed even for empty slices so the engine stores a
 * zero-length blob rather than NULL
 */
func sqlite3_bind_blob(stmt SQLiteStmt, index int, value []byte) ResultCode {
	b := value
	if len(b) == 0 {
		b = placeholderByte
	}
	code := c_sqlite3_bind_blob(unsafe.Pointer(stmt), int32(index), unsafe.Pointer(&b[0]), int32(len(value)), sqlite_transient)
	runtime.KeepAlive(b)
	return ResultCode(code)
}

/** Return the number of result columns a statement declares */
func sqlite3_column_count(stmt SQLiteStmt) int {
	return int(c_sqlite3_column_count(unsafe.Pointer(stmt)))
}

/** Return the name of a result column (copied) */
func sqlite3_column_name(stmt SQLiteStmt, index int) string {
	return copyCString(c_sqlite3_column_name(unsafe.Pointer(stmt), int32(index)))
}

/** Return the runtime datatype of a column value in the current row */
func sqlite3_column_type(stmt SQLiteStmt, index int) ColumnType {
	return ColumnType(c_sqlite3_column_type(unsafe.Pointer(stmt), int32(index)))
}

/** Return an INTEGER column value in the current row */
func sqlite3_column_int64(stmt SQLiteStmt, index int) int64 {
	return c_sqlite3_column_int64(unsafe.Pointer(stmt), int32(index))
}

/** Return a FLOAT column value in the current row */
func sqlite3_column_double(stmt SQLiteStmt, index int) float64 {
	return c_sqlite3_column_double(unsafe.Pointer(stmt), int32(index))
}

/** Return a TEXT column value in the current row as a Go string (copied)
 * Length comes from sqlite3_column_bytes, so embedded zero bytes survive
 */
func sqlite3_column_text(stmt SQLiteStmt, index int) string {
	ptr := c_sqlite3_column_text(unsafe.Pointer(stmt), int32(index))
	n := int(c_sqlite3_column_bytes(unsafe.Pointer(stmt), int32(index)))
	if ptr == nil || n <= 0 {
		return ""
	}
	return string(copyCBytes(ptr, n))
}

/** Return a BLOB column value in the current row as a Go byte slice (copied)
 * A zero-length blob yields an empty non-nil slice
 */
func sqlite3_column_blob(stmt SQLiteStmt, index int) []byte {
	ptr := c_sqlite3_column_blob(unsafe.Pointer(stmt), int32(index))
	n := int(c_sqlite3_column_bytes(unsafe.Pointer(stmt), int32(index)))
	if ptr == nil || n <= 0 {
		return []byte{}
	}
	return copyCBytes(ptr, n)
}

/** Return the declared type of a result column, or "" for expressions */
func sqlite3_column_decltype(stmt SQLiteStmt, index int) string {
	return copyCString(c_sqlite3_column_decltype(unsafe.Pointer(stmt), int32(index)))
}

/** Return the rowid of the most recent successful INSERT */
func sqlite3_last_insert_rowid(db SQLiteDB) int64 {
	return c_sqlite3_last_insert_rowid(unsafe.Pointer(db))
}

/** Return the number of rows changed by the most recent statement */
func sqlite3_changes(db SQLiteDB) int {
	return int(c_sqlite3_changes(unsafe.Pointer(db)))
}

/** Return the total number of rows changed since the connection opened */
func sqlite3_total_changes(db SQLiteDB) int {
	return int(c_sqlite3_total_changes(unsafe.Pointer(db)))
}

/** Report whether the connection is in autocommit mode */
func sqlite3_get_autocommit(db SQLiteDB) bool {
	return c_sqlite3_get_autocommit(unsafe.Pointer(db)) != 0
}

/** Return the filename backing a schema, "" for in-memory or unknown */
func sqlite3_db_filename(db SQLiteDB, name string) string {
	return copyCString(c_sqlite3_db_filename(unsafe.Pointer(db), name))
}

/** Set the busy handler timeout in milliseconds; 0 disables it */
func sqlite3_busy_timeout(db SQLiteDB, ms int) ResultCode {
	return ResultCode(c_sqlite3_busy_timeout(unsafe.Pointer(db), int32(ms)))
}

/** Abort the query currently running on the connection
 * Safe to call from a different goroutine than the one stepping; the
 * in-flight step fails with SQLITE_INTERRUPT
 */
func sqlite3_interrupt(db SQLiteDB) {
	c_sqlite3_interrupt(unsafe.Pointer(db))
}

/** Query or change a per-connection limit; newVal -1 queries
 * Returns the prior value, or -1 for an invalid category
 */
func sqlite3_limit(db SQLiteDB, id, newVal int) int {
	return int(c_sqlite3_limit(unsafe.Pointer(db), int32(id), int32(newVal)))
}

/** Read a per-connection status counter and its high-water mark */
func sqlite3_db_status(db SQLiteDB, op int, reset bool) (int, int, ResultCode) {
	var cur, hwm int32
	var flag int32
	if reset {
		flag = 1
	}
	code := c_sqlite3_db_status(unsafe.Pointer(db), int32(op), unsafe.Pointer(&cur), unsafe.Pointer(&hwm), flag)
	return int(cur), int(hwm), ResultCode(code)
}

/** Read a global status counter and its high-water mark */
func sqlite3_status64(op int, reset bool) (int64, int64, ResultCode) {
	var cur, hwm int64
	var flag int32
	if reset {
		flag = 1
	}
	code := c_sqlite3_status64(int32(op), unsafe.Pointer(&cur), unsafe.Pointer(&hwm), flag)
	return cur, hwm, ResultCode(code)
}

/** Sleep for at least the given number of milliseconds */
func sqlite3_sleep(ms int) {
	c_sqlite3_sleep(int32(ms))
}

/** Start a backup from srcName on src to dstName on dst
 * Returns nil on failure; the error is then readable with sqlite3_errmsg on
 * the destination handle
 */
func sqlite3_backup_init(dst SQLiteDB, dstName string, src SQLiteDB, srcName string) SQLiteBackup {
	return SQLiteBackup(c_sqlite3_backup_init(unsafe.Pointer(dst), dstName, unsafe.Pointer(src), srcName))
}

/** Copy up to nPage pages between the backup's two databases
 * Returns SQLITE_OK to continue, SQLITE_DONE when complete, SQLITE_BUSY or
 * SQLITE_LOCKED when the copy should be retried after a pause
 */
func sqlite3_backup_step(b SQLiteBackup, nPage int) ResultCode {
	return ResultCode(c_sqlite3_backup_step(unsafe.Pointer(b), int32(nPage)))
}

/** Return the number of pages still to be copied */
func sqlite3_backup_remaining(b SQLiteBackup) int {
	return int(c_sqlite3_backup_remaining(unsafe.Pointer(b)))
}

/** Return the total number of pages in the source database */
func sqlite3_backup_pagecount(b SQLiteBackup) int {
	return int(c_sqlite3_backup_pagecount(unsafe.Pointer(b)))
}

/** Release a backup session; the destination transaction is committed or
 * rolled back as appropriate
 */
func sqlite3_backup_finish(b SQLiteBackup) ResultCode {
	return ResultCode(c_sqlite3_backup_finish(unsafe.Pointer(b)))
}
