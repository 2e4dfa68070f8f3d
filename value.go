package purelite

import (
	"fmt"
	"math"
	"time"
)

// Row is a single result row keyed by column name. Queries that return rows
// as maps produce one Row per result row; a Row can be passed back as the
// sole query argument to bind its entries by parameter name.
type Row map[string]any

// NamedArgs is the map form accepted as the sole query argument to switch a
// query to named parameter binding. It is an alias, so a plain
// map[string]any works identically.
type NamedArgs = map[string]any

// bindValue binds a single Go value at a 1-based parameter index,
// converting it to the engine's type model. name is the declared parameter
// name when binding named arguments, used for error reporting only.
func bindValue(db SQLiteDB, stmt SQLiteStmt, index int, name string, v any) error {
	var rc ResultCode
	switch x := v.(type) {
	case nil:
		rc = sqlite3_bind_null(stmt, index)
	case bool:
		n := int64(0)
		if x {
			n = 1
		}
		rc = sqlite3_bind_int64(stmt, index, n)
	case int:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case int8:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case int16:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case int32:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case int64:
		rc = sqlite3_bind_int64(stmt, index, x)
	case uint:
		if uint64(x) > uint64(math.MaxInt64) {
			return bindRangeError(index, name, uint64(x))
		}
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case uint8:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case uint16:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case uint32:
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case uint64:
		if x > uint64(math.MaxInt64) {
			return bindRangeError(index, name, x)
		}
		rc = sqlite3_bind_int64(stmt, index, int64(x))
	case float32:
		rc = sqlite3_bind_double(stmt, index, float64(x))
	case float64:
		rc = sqlite3_bind_double(stmt, index, x)
	case string:
		rc = sqlite3_bind_text(stmt, index, x)
	case []byte:
		if x == nil {
			rc = sqlite3_bind_null(stmt, index)
		} else {
			rc = sqlite3_bind_blob(stmt, index, x)
		}
	case time.Time:
		rc = sqlite3_bind_text(stmt, index, x.Format(SQLiteTimestampFormats[0]))
	default:
		return &BindError{
			Index:   index,
			Name:    name,
			Message: fmt.Sprintf("cannot bind value of type %T", v),
		}
	}
	if rc != SQLITE_OK {
		return &BindError{
			Index:   index,
			Name:    name,
			Message: sqlite3_errmsg(db),
		}
	}
	return nil
}

func bindRangeError(index int, name string, v uint64) error {
	return &BindError{
		Index:   index,
		Name:    name,
		Message: fmt.Sprintf("value %d out of range for an integer column", v),
	}
}

// columnValue reads the value of the given 0-based column of the current
// row. Integer columns come back as int64, floats as float64, text as
// string, blobs as []byte and NULL as nil.
func columnValue(stmt SQLiteStmt, index int) any {
	switch sqlite3_column_type(stmt, index) {
	case SQLITE_INTEGER:
		return sqlite3_column_int64(stmt, index)
	case SQLITE_FLOAT:
		return sqlite3_column_double(stmt, index)
	case SQLITE_TEXT:
		return sqlite3_column_text(stmt, index)
	case SQLITE_BLOB:
		return sqlite3_column_blob(stmt, index)
	default:
		return nil
	}
}

// columnNames reads the declared column names of a compiled statement.
func columnNames(stmt SQLiteStmt) []string {
	n := sqlite3_column_count(stmt)
	names := make([]string, n)
	for i := range names {
		names[i] = sqlite3_column_name(stmt, i)
	}
	return names
}

// rowValues reads every column of the current row in declaration order.
func rowValues(stmt SQLiteStmt, n int) []any {
	values := make([]any, n)
	for i := range values {
		values[i] = columnValue(stmt, i)
	}
	return values
}
