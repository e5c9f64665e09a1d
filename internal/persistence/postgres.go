package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"midas/pkg/errors"
)

// PostgresStore is the durable Store implementation. Every logical operation
// runs in its own commit-or-rollback transaction, so concurrent step
// functions get isolated transactions rather than a shared open one.
type PostgresStore struct {
	db     *sqlx.DB
	schema Schema
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore binds a pooled connection to the table schema registry.
func NewPostgresStore(db *sqlx.DB, schema Schema) *PostgresStore {
	return &PostgresStore{db: db, schema: schema}
}

// Get selects all rows matching the equality filters, in insertion order.
func (p *PostgresStore) Get(ctx context.Context, table string, filters Filters) ([]Row, error) {
	if err := p.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", table)
	args := make([]interface{}, 0, len(filters))
	for _, col := range sortedColumns(filterColumns(filters)) {
		if len(args) == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filters[col])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}
	sb.WriteString(" ORDER BY id")

	return p.Query(ctx, sb.String(), args...)
}

// Set bulk-inserts rows inside a single transaction; if any row fails
// validation or insertion, none are persisted.
func (p *PostgresStore) Set(ctx context.Context, table string, rows []Row) error {
	if err := p.schema.CheckTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if err := p.schema.CheckColumns(table, rowColumns(row), false); err != nil {
			return err
		}
	}

	return p.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			cols := sortedColumns(rowColumns(row))
			placeholders := make([]string, len(cols))
			args := make([]interface{}, len(cols))
			for i, col := range cols {
				placeholders[i] = fmt.Sprintf("$%d", i+1)
				args[i] = row[col]
			}
			stmt := fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s)",
				table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
			)
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return errors.Wrapf(err, "insert into %s", table)
			}
		}
		return nil
	})
}

// Update sets values on every row matching the filters.
func (p *PostgresStore) Update(ctx context.Context, table string, filters Filters, values Row) error {
	if err := p.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return err
	}
	if err := p.schema.CheckColumns(table, rowColumns(values), false); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET updated_at = NOW()", table)
	var args []interface{}
	for _, col := range sortedColumns(rowColumns(values)) {
		args = append(args, values[col])
		fmt.Fprintf(&sb, ", %s = $%d", col, len(args))
	}
	first := true
	for _, col := range sortedColumns(filterColumns(filters)) {
		if first {
			sb.WriteString(" WHERE ")
			first = false
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filters[col])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}

	return p.Write(ctx, sb.String(), args...)
}

// Delete removes every row matching the filters.
func (p *PostgresStore) Delete(ctx context.Context, table string, filters Filters) error {
	if err := p.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", table)
	var args []interface{}
	for _, col := range sortedColumns(filterColumns(filters)) {
		if len(args) == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filters[col])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}

	return p.Write(ctx, sb.String(), args...)
}

// Query runs a raw SELECT and returns generic rows.
func (p *PostgresStore) Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error) {
	rows, err := p.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %q", stmt)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		normalizeRow(row)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Write runs a raw statement in its own transaction.
func (p *PostgresStore) Write(ctx context.Context, stmt string, args ...interface{}) error {
	return p.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return errors.Wrapf(err, "exec %q", stmt)
		}
		return nil
	})
}

func (p *PostgresStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// normalizeRow rewrites driver []byte values into strings so Row accessors
// behave the same as on the in-memory store.
func normalizeRow(row Row) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}

func sortedColumns(cols []string) []string {
	out := append([]string(nil), cols...)
	sort.Strings(out)
	return out
}
