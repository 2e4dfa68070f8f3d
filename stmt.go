package purelite

import (
	"fmt"
	"strings"
)

// stepRow advances stmt by one row and reports whether a row is available;
// completion is (false, nil). Busy, locked and interrupt outcomes surface
// as their typed errors, everything else as *SQLError.
func (db *Database) stepRow(stmt SQLiteStmt) (bool, error) {
	switch rc := sqlite3_step(stmt); rc {
	case SQLITE_ROW:
		return true, nil
	case SQLITE_DONE:
		return false, nil
	default:
		return false, resultError(db.handle, rc)
	}
}

// driveToDone steps stmt to completion, discarding any rows it produces.
func (db *Database) driveToDone(stmt SQLiteStmt) error {
	for {
		row, err := db.stepRow(stmt)
		if err != nil {
			return err
		}
		if !row {
			return nil
		}
	}
}

// exhaust drives stmt to completion for effect and always finalizes it.
func (db *Database) exhaust(stmt SQLiteStmt) error {
	defer sqlite3_finalize(stmt)
	return db.driveToDone(stmt)
}

// prepareLast compiles sql one statement at a time, fully executing and
// finalizing every statement except the last. Each statement runs before
// the next is compiled, so later statements see schema changes made by
// earlier ones. The last statement is returned compiled but unstepped; it
// is nil when sql holds no statement at all (whitespace or comments only).
func (db *Database) prepareLast(sql string) (SQLiteStmt, error) {
	rest := sql
	for {
		stmt, tail, rc := sqlite3_prepare_v2(db.handle, rest)
		if rc != SQLITE_OK {
			return nil, resultError(db.handle, rc)
		}
		if stmt == nil {
			return nil, nil
		}
		if strings.TrimSpace(tail) == "" {
			return stmt, nil
		}
		if err := db.exhaust(stmt); err != nil {
			return nil, err
		}
		rest = tail
	}
}

// prepareFirst compiles only the first statement in sql, ignoring trailing
// text. The statement is nil when sql holds no statement.
func (db *Database) prepareFirst(sql string) (SQLiteStmt, error) {
	stmt, _, rc := sqlite3_prepare_v2(db.handle, sql)
	if rc != SQLITE_OK {
		return nil, resultError(db.handle, rc)
	}
	return stmt, nil
}

// bindArgs binds query arguments to a compiled statement. A single map
// argument selects named binding, a single slice argument is expanded as
// the positional values, anything else binds positionally in call order.
func (db *Database) bindArgs(stmt SQLiteStmt, args []any) error {
	if len(args) == 1 {
		switch a := args[0].(type) {
		case map[string]any:
			return db.bindNamed(stmt, a)
		case Row:
			return db.bindNamed(stmt, a)
		case []any:
			return db.bindPositional(stmt, a)
		}
	}
	return db.bindPositional(stmt, args)
}

// bindPositional binds values at parameter indices 1..len(args). Supplying
// more values than the statement declares is an error; fewer is allowed
// and the unbound parameters stay NULL.
func (db *Database) bindPositional(stmt SQLiteStmt, args []any) error {
	count := sqlite3_bind_parameter_count(stmt)
	if len(args) > count {
		return &BindError{
			Message: fmt.Sprintf("%d values supplied for %d parameters", len(args), count),
		}
	}
	for i, v := range args {
		if err := bindValue(db.handle, stmt, i+1, "", v); err != nil {
			return err
		}
	}
	return nil
}

// bindNamed resolves each declared placeholder name against params, first
// with its prefix character and then with the prefix stripped. Parameters
// without a match, and nameless ? placeholders, stay NULL.
func (db *Database) bindNamed(stmt SQLiteStmt, params map[string]any) error {
	count := sqlite3_bind_parameter_count(stmt)
	for i := 1; i <= count; i++ {
		name := sqlite3_bind_parameter_name(stmt, i)
		if name == "" {
			continue
		}
		v, ok := params[name]
		if !ok {
			v, ok = params[name[1:]]
		}
		if !ok {
			continue
		}
		if err := bindValue(db.handle, stmt, i, name, v); err != nil {
			return err
		}
	}
	return nil
}

// bindSet binds one batch parameter set: a slice binds positionally, a map
// by name, a bare value as the single positional parameter.
func (db *Database) bindSet(stmt SQLiteStmt, set any) error {
	switch s := set.(type) {
	case nil:
		return nil
	case []any:
		return db.bindPositional(stmt, s)
	case map[string]any:
		return db.bindNamed(stmt, s)
	case Row:
		return db.bindNamed(stmt, s)
	default:
		return db.bindPositional(stmt, []any{s})
	}
}

// Statement is a prepared statement compiled once and reusable across many
// executions with fresh arguments. It offers the same result shapes as the
// one-shot Database query methods. A Statement belongs to the connection
// that prepared it and is not safe for concurrent use.
type Statement struct {
	db     *Database
	stmt   SQLiteStmt
	sql    string
	closed bool
}

// Prepare compiles the first statement in sql for repeated execution. The
// statement holds engine resources until Close is called; a database with
// open prepared statements refuses to close.
func (db *Database) Prepare(sql string) (*Statement, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	sql = strings.TrimSpace(sql)
	stmt, err := db.prepareFirst(sql)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, &SQLError{Code: SQLITE_MISUSE, Message: "cannot prepare an empty statement", Offset: -1}
	}
	return &Statement{db: db, stmt: stmt, sql: sql}, nil
}

func (s *Statement) checkOpen() error {
	if s.closed {
		return &UseAfterCloseError{Subject: "statement"}
	}
	return s.db.checkOpen()
}

// SQL returns the text the statement was compiled from.
func (s *Statement) SQL() string { return s.sql }

// Database returns the connection the statement belongs to.
func (s *Statement) Database() *Database { return s.db }

// Closed reports whether Close has been called.
func (s *Statement) Closed() bool { return s.closed }

// Close finalizes the statement and releases its engine resources. Closing
// an already closed statement is a no-op. The finalize result is ignored
// because it only repeats the most recent step failure, which was already
// reported to the caller that stepped.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sqlite3_finalize(s.stmt)
	return nil
}

// perform runs one execution cycle: clear the previous run's state, bind
// fresh arguments, hand the statement to fn, and reset afterwards so row
// locks are released between uses.
func (s *Statement) perform(args []any, fn func(*queryCtx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.db.callTrace(s.sql)
	sqlite3_reset(s.stmt)
	sqlite3_clear_bindings(s.stmt)
	if err := s.db.bindArgs(s.stmt, args); err != nil {
		return err
	}
	defer sqlite3_reset(s.stmt)
	return fn(&queryCtx{db: s.db, stmt: s.stmt})
}

// Query runs the statement and returns all rows keyed by column name.
func (s *Statement) Query(args ...any) ([]Row, error) {
	out := &sink[Row]{}
	err := s.perform(args, func(c *queryCtx) error { return c.mapRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryEach runs the statement, passing each row to fn as it is read.
func (s *Statement) QueryEach(fn func(Row), args ...any) error {
	return s.perform(args, func(c *queryCtx) error {
		return c.mapRows(&sink[Row]{push: fn})
	})
}

// QueryArrays runs the statement and returns all rows as positional value
// slices.
func (s *Statement) QueryArrays(args ...any) ([][]any, error) {
	out := &sink[[]any]{}
	err := s.perform(args, func(c *queryCtx) error { return c.arrayRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryArraysEach runs the statement, passing each row to fn as a
// positional value slice.
func (s *Statement) QueryArraysEach(fn func([]any), args ...any) error {
	return s.perform(args, func(c *queryCtx) error {
		return c.arrayRows(&sink[[]any]{push: fn})
	})
}

// QueryColumn runs the statement and returns the first column of every
// row.
func (s *Statement) QueryColumn(args ...any) ([]any, error) {
	out := &sink[any]{}
	err := s.perform(args, func(c *queryCtx) error { return c.columnRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryColumnEach runs the statement, passing the first column of each row
// to fn.
func (s *Statement) QueryColumnEach(fn func(any), args ...any) error {
	return s.perform(args, func(c *queryCtx) error {
		return c.columnRows(&sink[any]{push: fn})
	})
}

// QueryRow runs the statement and returns the first row, or nil when the
// statement produced no rows. The statement is not driven past that row.
func (s *Statement) QueryRow(args ...any) (Row, error) {
	var row Row
	err := s.perform(args, func(c *queryCtx) error {
		var err error
		row, err = c.firstRow()
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// QueryValue runs the statement and returns the first column of the first
// row, or nil when the statement produced no rows.
func (s *Statement) QueryValue(args ...any) (any, error) {
	var value any
	err := s.perform(args, func(c *queryCtx) error {
		var err error
		value, err = c.firstValue()
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Execute runs the statement to completion and returns the number of rows
// changed.
func (s *Statement) Execute(args ...any) (int, error) {
	changes := 0
	err := s.perform(args, func(c *queryCtx) error {
		if err := c.db.driveToDone(c.stmt); err != nil {
			return err
		}
		changes = sqlite3_changes(c.db.handle)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changes, nil
}

// ExecuteBatch runs the statement once per parameter set and returns the
// accumulated change count.
func (s *Statement) ExecuteBatch(sets []any) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	sqlite3_reset(s.stmt)
	sqlite3_clear_bindings(s.stmt)
	defer sqlite3_reset(s.stmt)
	return s.db.runBatch(s.stmt, sets)
}

// Columns returns the statement's declared column names without executing
// it.
func (s *Statement) Columns() ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return columnNames(s.stmt), nil
}
