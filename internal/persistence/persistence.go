package persistence

import (
	"context"
	"time"

	"midas/pkg/errors"
)

// Row is a single persisted record keyed by column name.
type Row map[string]interface{}

// Filters is a set of equality predicates applied to a Get/Update/Delete.
type Filters map[string]interface{}

// Store is the persistence abstraction step functions run against.
//
// Get returns rows in insertion order. Unknown table or column names fail
// with ErrUnknownTable/ErrUnknownColumn so that typos surface immediately
// instead of silently skipping work. Set appends rows all-or-nothing; an
// empty slice is a no-op. Update and Delete are targeted mutations expressed
// structurally so every backend can serve them. Query and Write are the raw
// SQL escape hatch for cross-table statements; backends without a relational
// engine return ErrUnsupported.
type Store interface {
	Get(ctx context.Context, table string, filters Filters) ([]Row, error)
	Set(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, filters Filters, values Row) error
	Delete(ctx context.Context, table string, filters Filters) error
	Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error)
	Write(ctx context.Context, stmt string, args ...interface{}) error
}

// Schema maps table name to its declared column names. Both store
// implementations validate against it.
type Schema map[string][]string

// systemColumns are maintained by the store itself and are readable and
// filterable but never written by callers.
var systemColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// HasTable reports whether the schema declares the table.
func (s Schema) HasTable(table string) bool {
	_, ok := s[table]
	return ok
}

// CheckTable returns ErrUnknownTable when the table is not declared.
func (s Schema) CheckTable(table string) error {
	if !s.HasTable(table) {
		return errors.Wrapf(errors.ErrUnknownTable, "%q", table)
	}
	return nil
}

// CheckColumns validates column names against the table's declared columns.
// System columns are accepted when allowSystem is set.
func (s Schema) CheckColumns(table string, cols []string, allowSystem bool) error {
	if err := s.CheckTable(table); err != nil {
		return err
	}
	declared := make(map[string]bool, len(s[table]))
	for _, c := range s[table] {
		declared[c] = true
	}
	for _, c := range cols {
		if declared[c] {
			continue
		}
		if allowSystem && systemColumns[c] {
			continue
		}
		return errors.Wrapf(errors.ErrUnknownColumn, "%q in table %q", c, table)
	}
	return nil
}

// String reads a column as a string, tolerating []byte values.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Float reads a column as a float64, tolerating integer values.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Int reads a column as an int64, tolerating float values.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Bool reads a column as a bool.
func (r Row) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Time reads a column as a time.Time.
func (r Row) Time(col string) time.Time {
	v, _ := r[col].(time.Time)
	return v
}

// NullFloat reads a nullable float column; ok is false for NULL or absent.
func (r Row) NullFloat(col string) (float64, bool) {
	if v, present := r[col]; !present || v == nil {
		return 0, false
	}
	return r.Float(col), true
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
