package purelite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// define all package level errors here
var (
	ErrStmtClosed = errors.New("purelite: statement closed")
	ErrConnClosed = errors.New("purelite: connection closed")
	ErrRowsClosed = errors.New("purelite: rows closed")
	ErrTxDone     = errors.New("purelite: transaction done")
)

// define all package level structs here

type pureliteDriver struct{}

type pureliteConn struct {
	db *Database

	mu          sync.Mutex
	closed      bool
	busyTimeout int // current busy timeout in milliseconds
}

type pureliteStmt struct {
	conn      *pureliteConn
	sql       string
	numInputs int
	closed    bool
}

type pureliteRows struct {
	conn      *pureliteConn
	stmt      SQLiteStmt
	ctx       context.Context
	done      chan struct{}
	columns   []string
	decltypes []string

	closed bool
	err    error
}

type pureliteResult struct {
	lastInsertId int64
	rowsAffected int64
}

type pureliteTx struct {
	conn *pureliteConn
	done bool
}

// register driver
func init() {
	sql.Register("purelite", &pureliteDriver{})
}

// defaultDriverBusyTimeout is applied to driver connections that do not
// set _busy_timeout themselves, in milliseconds.
const defaultDriverBusyTimeout = 5000

// Implement sql.Driver methods
func (d *pureliteDriver) Open(dsn string) (driver.Conn, error) {
	return openDriverConn(dsn)
}

func openDriverConn(dsn string) (*pureliteConn, error) {
	cfg, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if cfg.readOnly {
		opts = append(opts, WithReadOnly())
	}
	db, err := Open(cfg.path, opts...)
	if err != nil {
		return nil, err
	}
	// A value of -1 means explicitly disabled, 0 means use the default,
	// a positive value is used as-is.
	timeout := cfg.busyTimeout
	if timeout == 0 {
		timeout = defaultDriverBusyTimeout
	} else if timeout < 0 {
		timeout = 0
	}
	if timeout > 0 {
		if err := db.SetBusyTimeout(time.Duration(timeout) * time.Millisecond); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &pureliteConn{db: db, busyTimeout: timeout}, nil
}

// --- driver.Conn and friends ---

// Ensure pureliteConn implements required interfaces.
var (
	_ driver.Conn               = (*pureliteConn)(nil)
	_ driver.ConnPrepareContext = (*pureliteConn)(nil)
	_ driver.ExecerContext      = (*pureliteConn)(nil)
	_ driver.QueryerContext     = (*pureliteConn)(nil)
	_ driver.Pinger             = (*pureliteConn)(nil)
	_ driver.ConnBeginTx        = (*pureliteConn)(nil)
)

func (c *pureliteConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *pureliteConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// compile once to validate the SQL and count inputs, then finalize so
	// no engine state outlives this call
	stmt, err := c.db.prepareFirst(query)
	if err != nil {
		return nil, err
	}
	num := 0
	if stmt != nil {
		num = sqlite3_bind_parameter_count(stmt)
		sqlite3_finalize(stmt)
	}
	return &pureliteStmt{
		conn:      c,
		sql:       query,
		numInputs: num,
	}, nil
}

func (c *pureliteConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	c.closed = true
	return nil
}

func (c *pureliteConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *pureliteConn) BeginTx(ctx context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := c.ExecContext(ctx, "BEGIN", nil); err != nil {
		return nil, err
	}
	return &pureliteTx{conn: c}, nil
}

func (c *pureliteConn) Ping(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, "SELECT 1", nil)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (c *pureliteConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var res driver.Result
	err := c.watchCtx(ctx, func() error {
		var err error
		res, err = c.execAll(ctx, query, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// execAll runs every statement in query, binding args to the first one and
// accumulating the affected row count across all of them.
func (c *pureliteConn) execAll(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	res := &pureliteResult{}
	first := true
	rest := query
	for strings.TrimSpace(rest) != "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stmt, tail, rc := sqlite3_prepare_v2(c.db.handle, rest)
		if rc != SQLITE_OK {
			return nil, resultError(c.db.handle, rc)
		}
		if stmt == nil {
			break
		}
		if first && len(args) > 0 {
			if err := bindDriverArgs(c.db, stmt, args); err != nil {
				sqlite3_finalize(stmt)
				return nil, err
			}
		}
		err := c.db.driveToDone(stmt)
		sqlite3_finalize(stmt)
		if err != nil {
			return nil, err
		}
		res.rowsAffected += int64(sqlite3_changes(c.db.handle))
		res.lastInsertId = sqlite3_last_insert_rowid(c.db.handle)
		first = false
		rest = tail
	}
	return res, nil
}

func (c *pureliteConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// Only the first statement is compiled here; leave the cursor before
	// the first row
	stmt, err := c.db.prepareFirst(query)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, fmt.Errorf("purelite: query %q holds no statement", query)
	}
	if len(args) > 0 {
		if err := bindDriverArgs(c.db, stmt, args); err != nil {
			sqlite3_finalize(stmt)
			return nil, err
		}
	}
	rows := &pureliteRows{conn: c, stmt: stmt, ctx: ctx}
	if ctx.Done() != nil {
		rows.done = make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				c.db.Interrupt()
			case <-rows.done:
			}
		}()
	}
	return rows, nil
}

func (c *pureliteConn) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return nil
}

// watchCtx interrupts the connection when ctx is cancelled while fn runs,
// so a blocked step fails instead of outliving its deadline.
func (c *pureliteConn) watchCtx(ctx context.Context, fn func() error) error {
	if ctx.Done() == nil {
		return fn()
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.db.Interrupt()
		case <-done:
		}
	}()
	err := fn()
	close(done)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// SetBusyTimeout sets the busy timeout for this connection in milliseconds.
// Pass 0 to disable the busy handler (immediate busy errors on contention).
func (c *pureliteConn) SetBusyTimeout(timeoutMs int) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeoutMs < 0 {
		timeoutMs = 0
	}
	if err := c.db.SetBusyTimeout(time.Duration(timeoutMs) * time.Millisecond); err != nil {
		return err
	}
	c.busyTimeout = timeoutMs
	return nil
}

// GetBusyTimeout returns the current busy timeout in milliseconds.
func (c *pureliteConn) GetBusyTimeout() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyTimeout
}

// --- Connector Pattern ---

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithConnectorBusyTimeout sets the busy timeout in milliseconds for
// connections the Connector opens. Use 0 to disable the busy handler, -1
// to keep the DSN's value or the default.
func WithConnectorBusyTimeout(ms int) ConnectorOption {
	return func(c *Connector) {
		c.busyTimeout = ms
	}
}

// Connector implements driver.Connector for programmatic configuration.
type Connector struct {
	dsn         string
	busyTimeout int // -1 = DSN or default, 0 = disabled, >0 = custom
}

// NewConnector creates a new Connector with the given DSN and options.
func NewConnector(dsn string, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{
		dsn:         dsn,
		busyTimeout: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect implements driver.Connector.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	conn, err := openDriverConn(c.dsn)
	if err != nil {
		return nil, err
	}
	if c.busyTimeout >= 0 {
		if err := conn.SetBusyTimeout(c.busyTimeout); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver {
	return &pureliteDriver{}
}

// Ensure Connector implements driver.Connector
var _ driver.Connector = (*Connector)(nil)

// --- driver.Stmt and friends ---

// Ensure pureliteStmt implements required interfaces.
var (
	_ driver.Stmt             = (*pureliteStmt)(nil)
	_ driver.StmtExecContext  = (*pureliteStmt)(nil)
	_ driver.StmtQueryContext = (*pureliteStmt)(nil)
)

func (s *pureliteStmt) Close() error {
	s.closed = true
	return nil
}

func (s *pureliteStmt) NumInput() int {
	return s.numInputs
}

func (s *pureliteStmt) Exec(args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return s.ExecContext(context.Background(), named)
}

func (s *pureliteStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if s.closed {
		return nil, ErrStmtClosed
	}
	return s.conn.ExecContext(ctx, s.sql, args)
}

func (s *pureliteStmt) Query(args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return s.QueryContext(context.Background(), named)
}

func (s *pureliteStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.closed {
		return nil, ErrStmtClosed
	}
	return s.conn.QueryContext(ctx, s.sql, args)
}

// --- driver.Rows ---

// Ensure pureliteRows implements the required interface.
var _ driver.Rows = (*pureliteRows)(nil)

func (r *pureliteRows) Columns() []string {
	if r.columns != nil {
		return r.columns
	}
	n := sqlite3_column_count(r.stmt)
	names := make([]string, n)
	decltypes := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = sqlite3_column_name(r.stmt, i)
		decltypes[i] = sqlite3_column_decltype(r.stmt, i)
	}
	r.columns = names
	r.decltypes = decltypes
	return r.columns
}

func (r *pureliteRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	sqlite3_finalize(r.stmt)
	return nil
}

func (r *pureliteRows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	// Ensure decltypes are populated
	_ = r.Columns()
	row, err := r.conn.db.stepRow(r.stmt)
	if err != nil {
		var interrupted *InterruptError
		if errors.As(err, &interrupted) && r.ctx != nil && r.ctx.Err() != nil {
			err = r.ctx.Err()
		}
		r.err = err
		return err
	}
	if !row {
		return io.EOF
	}
	n := sqlite3_column_count(r.stmt)
	if len(dest) != n {
		return fmt.Errorf("purelite: expected %d dests, got %d", n, len(dest))
	}
	for i := 0; i < n; i++ {
		v := columnValue(r.stmt, i)
		if text, ok := v.(string); ok && i < len(r.decltypes) && isTimeColumn(r.decltypes[i]) {
			if t, err := parseTimeString(text); err == nil {
				v = t
			}
		}
		dest[i] = v
	}
	return nil
}

// --- driver.Result ---

var _ driver.Result = (*pureliteResult)(nil)

func (r *pureliteResult) LastInsertId() (int64, error) {
	return r.lastInsertId, nil
}

func (r *pureliteResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- driver.Tx ---

var _ driver.Tx = (*pureliteTx)(nil)

func (tx *pureliteTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	_, err := tx.conn.ExecContext(context.Background(), "COMMIT", nil)
	tx.done = true
	return err
}

func (tx *pureliteTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	_, err := tx.conn.ExecContext(context.Background(), "ROLLBACK", nil)
	tx.done = true
	return err
}

// Helpers

type dsnConfig struct {
	path        string
	busyTimeout int // milliseconds; -1 disables, 0 means default
	readOnly    bool
}

// parseDSN splits the database path from driver parameters. Parameters
// beginning with an underscore configure the driver; anything else stays
// on the path for the engine's own URI handling when the path uses the
// file: scheme.
func parseDSN(dsn string) (dsnConfig, error) {
	cfg := dsnConfig{path: dsn}
	qMark := strings.IndexByte(dsn, '?')
	if qMark < 0 {
		return cfg, nil
	}
	cfg.path = dsn[:qMark]
	vals, err := url.ParseQuery(dsn[qMark+1:])
	if err != nil {
		return dsnConfig{}, err
	}
	if v := vals.Get("_busy_timeout"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return dsnConfig{}, fmt.Errorf("purelite: invalid _busy_timeout %q", v)
		}
		if timeout <= 0 {
			timeout = -1
		}
		cfg.busyTimeout = timeout
		vals.Del("_busy_timeout")
	}
	if v := vals.Get("_read_only"); v != "" {
		cfg.readOnly = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
		vals.Del("_read_only")
	}
	if len(vals) > 0 && strings.HasPrefix(cfg.path, "file:") {
		cfg.path = cfg.path + "?" + vals.Encode()
	}
	return cfg, nil
}

// bindDriverArgs binds database/sql values. Named values resolve through
// the statement's declared parameter names under any of the :, @ and $
// prefixes; ordinal values bind by position.
func bindDriverArgs(db *Database, stmt SQLiteStmt, args []driver.NamedValue) error {
	for idx, nv := range args {
		pos := idx + 1
		if nv.Name != "" {
			pos = findParameter(stmt, nv.Name)
			if pos <= 0 {
				return fmt.Errorf("purelite: unknown named parameter %q", nv.Name)
			}
		} else if nv.Ordinal > 0 {
			pos = nv.Ordinal
		}
		if err := bindValue(db.handle, stmt, pos, nv.Name, nv.Value); err != nil {
			return err
		}
	}
	return nil
}

func findParameter(stmt SQLiteStmt, name string) int {
	if i := sqlite3_bind_parameter_index(stmt, name); i > 0 {
		return i
	}
	for _, prefix := range []string{":", "@", "$"} {
		if i := sqlite3_bind_parameter_index(stmt, prefix+name); i > 0 {
			return i
		}
	}
	return 0
}

// isTimeColumn checks if the column declared type indicates a time/date
// column, matching the behavior of github.com/mattn/go-sqlite3.
func isTimeColumn(decltype string) bool {
	if decltype == "" {
		return false
	}
	upper := strings.ToUpper(decltype)
	return upper == "TIMESTAMP" || upper == "DATETIME" || upper == "DATE"
}

// SQLiteTimestampFormats are the timestamp formats understood when reading
// time values back out of text columns. The first entry is the canonical
// format time.Time values are stored in.
var SQLiteTimestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimeString attempts to parse a string as a time.Time value.
func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, format := range SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
