package purelite

import "strings"

// queryCtx carries one query execution from bind to cleanup. The statement
// it holds is owned by the caller that created the context.
type queryCtx struct {
	db   *Database
	stmt SQLiteStmt
}

// sink delivers materialized rows for one result shape. With push set each
// row goes straight to the consumer and nothing is retained; otherwise
// rows accumulate for the caller to collect.
type sink[T any] struct {
	push func(T)
	rows []T
}

func (s *sink[T]) emit(v T) {
	if s.push != nil {
		s.push(v)
		return
	}
	s.rows = append(s.rows, v)
}

// currentRow converts the row under the cursor into a Row using column
// names resolved by the caller.
func (c *queryCtx) currentRow(cols []string) Row {
	row := make(Row, len(cols))
	for i, name := range cols {
		row[name] = columnValue(c.stmt, i)
	}
	return row
}

// mapRows steps the statement to completion, emitting every row keyed by
// column name. Names are resolved once before the first step and reused
// for every row.
func (c *queryCtx) mapRows(s *sink[Row]) error {
	cols := columnNames(c.stmt)
	for {
		row, err := c.db.stepRow(c.stmt)
		if err != nil {
			return err
		}
		if !row {
			return nil
		}
		s.emit(c.currentRow(cols))
	}
}

// arrayRows steps the statement to completion, emitting every row as a
// positional value slice.
func (c *queryCtx) arrayRows(s *sink[[]any]) error {
	n := sqlite3_column_count(c.stmt)
	for {
		row, err := c.db.stepRow(c.stmt)
		if err != nil {
			return err
		}
		if !row {
			return nil
		}
		s.emit(rowValues(c.stmt, n))
	}
}

// columnRows steps the statement to completion, emitting the first column
// of every row. The statement must declare at least one column.
func (c *queryCtx) columnRows(s *sink[any]) error {
	if sqlite3_column_count(c.stmt) == 0 {
		return &SQLError{Code: SQLITE_MISUSE, Message: "query does not return any columns", Offset: -1}
	}
	for {
		row, err := c.db.stepRow(c.stmt)
		if err != nil {
			return err
		}
		if !row {
			return nil
		}
		s.emit(columnValue(c.stmt, 0))
	}
}

// firstRow steps at most once and converts the row, leaving the statement
// short of completion. It returns nil when no row was produced.
func (c *queryCtx) firstRow() (Row, error) {
	row, err := c.db.stepRow(c.stmt)
	if err != nil || !row {
		return nil, err
	}
	return c.currentRow(columnNames(c.stmt)), nil
}

// firstValue steps at most once and returns the first column of the row,
// or nil when no row was produced.
func (c *queryCtx) firstValue() (any, error) {
	row, err := c.db.stepRow(c.stmt)
	if err != nil || !row {
		return nil, err
	}
	return columnValue(c.stmt, 0), nil
}

// perform is the shared pipeline behind the one-shot query methods: check
// the connection, strip the SQL, report it to the trace callback, compile
// it statement by statement, bind arguments to the last statement, hand it
// to fn and finalize on every path. Empty SQL is a no-op and fn never
// runs.
func (db *Database) perform(sql string, args []any, fn func(*queryCtx) error) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil
	}
	db.callTrace(sql)
	stmt, err := db.prepareLast(sql)
	if err != nil {
		return err
	}
	if stmt == nil {
		return nil
	}
	defer sqlite3_finalize(stmt)
	if err := db.bindArgs(stmt, args); err != nil {
		return err
	}
	return fn(&queryCtx{db: db, stmt: stmt})
}

// Query runs sql and returns all rows keyed by column name. Arguments bind
// positionally, or by name when the sole argument is a map.
func (db *Database) Query(sql string, args ...any) ([]Row, error) {
	out := &sink[Row]{}
	err := db.perform(sql, args, func(c *queryCtx) error { return c.mapRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryEach runs sql, passing each row to fn as it is read. Nothing is
// retained, so result set size does not affect memory use.
func (db *Database) QueryEach(sql string, fn func(Row), args ...any) error {
	return db.perform(sql, args, func(c *queryCtx) error {
		return c.mapRows(&sink[Row]{push: fn})
	})
}

// QueryArrays runs sql and returns all rows as positional value slices.
func (db *Database) QueryArrays(sql string, args ...any) ([][]any, error) {
	out := &sink[[]any]{}
	err := db.perform(sql, args, func(c *queryCtx) error { return c.arrayRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryArraysEach runs sql, passing each row to fn as a positional value
// slice.
func (db *Database) QueryArraysEach(sql string, fn func([]any), args ...any) error {
	return db.perform(sql, args, func(c *queryCtx) error {
		return c.arrayRows(&sink[[]any]{push: fn})
	})
}

// QueryColumn runs sql and returns the first column of every row.
func (db *Database) QueryColumn(sql string, args ...any) ([]any, error) {
	out := &sink[any]{}
	err := db.perform(sql, args, func(c *queryCtx) error { return c.columnRows(out) })
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryColumnEach runs sql, passing the first column of each row to fn.
func (db *Database) QueryColumnEach(sql string, fn func(any), args ...any) error {
	return db.perform(sql, args, func(c *queryCtx) error {
		return c.columnRows(&sink[any]{push: fn})
	})
}

// QueryRow runs sql and returns the first row, or nil when the query
// produced no rows. The statement is not driven past that row.
func (db *Database) QueryRow(sql string, args ...any) (Row, error) {
	var row Row
	err := db.perform(sql, args, func(c *queryCtx) error {
		var err error
		row, err = c.firstRow()
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// QueryValue runs sql and returns the first column of the first row, or
// nil when the query produced no rows.
func (db *Database) QueryValue(sql string, args ...any) (any, error) {
	var value any
	err := db.perform(sql, args, func(c *queryCtx) error {
		var err error
		value, err = c.firstValue()
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Columns compiles sql and returns the declared column names of its last
// statement without executing it. Earlier statements in a multi-statement
// string still run for effect.
func (db *Database) Columns(sql string) ([]string, error) {
	var cols []string
	err := db.perform(sql, nil, func(c *queryCtx) error {
		cols = columnNames(c.stmt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}

// Execute runs sql to completion and returns the number of rows changed by
// its last statement. It is the preferred entry point for DML and DDL.
func (db *Database) Execute(sql string, args ...any) (int, error) {
	changes := 0
	err := db.perform(sql, args, func(c *queryCtx) error {
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

// ExecuteBatch compiles the first statement in sql once and runs it once
// per parameter set, returning the accumulated change count. Each set is a
// positional slice, a named map, or a bare value for a single-parameter
// statement. The SQL is not reported to the trace callback.
func (db *Database) ExecuteBatch(sql string, sets []any) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(sql) == "" {
		return 0, nil
	}
	stmt, err := db.prepareFirst(sql)
	if err != nil {
		return 0, err
	}
	if stmt == nil {
		return 0, nil
	}
	defer sqlite3_finalize(stmt)
	return db.runBatch(stmt, sets)
}

// runBatch binds and drives stmt once per parameter set, accumulating the
// change count. Bindings are cleared between iterations so a set that
// omits a parameter binds NULL rather than inheriting the previous value.
func (db *Database) runBatch(stmt SQLiteStmt, sets []any) (int, error) {
	changes := 0
	for _, set := range sets {
		if err := db.bindSet(stmt, set); err != nil {
			return 0, err
		}
		if err := db.driveToDone(stmt); err != nil {
			return 0, err
		}
		changes += sqlite3_changes(db.handle)
		sqlite3_reset(stmt)
		sqlite3_clear_bindings(stmt)
	}
	return changes, nil
}
