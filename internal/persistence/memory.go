package persistence

import (
	"context"
	"sync"
	"time"

	"midas/pkg/errors"
)

// MemoryStore is a mutex-guarded in-memory Store used for tests and for
// workflows that do not need durability. Rows live in a single namespace
// keyed by table name and carry a synthetic autoincrement id so code written
// against the relational store behaves the same here.
type MemoryStore struct {
	mu     sync.Mutex
	schema Schema
	tables map[string][]Row
	nextID map[string]int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store bound to the schema.
func NewMemoryStore(schema Schema) *MemoryStore {
	return &MemoryStore{
		schema: schema,
		tables: make(map[string][]Row),
		nextID: make(map[string]int64),
	}
}

// Get returns copies of all rows matching the equality filters, in
// insertion order.
func (m *MemoryStore) Get(ctx context.Context, table string, filters Filters) ([]Row, error) {
	if err := m.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Row
	for _, row := range m.tables[table] {
		if matches(row, filters) {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// Set appends rows. Every row is validated against the schema before any
// is stored, so a bad row rejects the whole batch.
func (m *MemoryStore) Set(ctx context.Context, table string, rows []Row) error {
	if err := m.schema.CheckTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if err := m.schema.CheckColumns(table, rowColumns(row), false); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range rows {
		stored := row.Clone()
		m.nextID[table]++
		stored["id"] = m.nextID[table]
		stored["created_at"] = now
		stored["updated_at"] = now
		m.tables[table] = append(m.tables[table], stored)
	}
	return nil
}

// Update sets values on every row matching the filters.
func (m *MemoryStore) Update(ctx context.Context, table string, filters Filters, values Row) error {
	if err := m.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return err
	}
	if err := m.schema.CheckColumns(table, rowColumns(values), false); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		row["updated_at"] = now
	}
	return nil
}

// Delete removes every row matching the filters.
func (m *MemoryStore) Delete(ctx context.Context, table string, filters Filters) error {
	if err := m.schema.CheckColumns(table, filterColumns(filters), true); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	m.tables[table] = kept
	return nil
}

// Query is not available on the in-memory store.
func (m *MemoryStore) Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error) {
	return nil, errors.Wrap(errors.ErrUnsupported, "raw queries require the relational store")
}

// Write is not available on the in-memory store.
func (m *MemoryStore) Write(ctx context.Context, stmt string, args ...interface{}) error {
	return errors.Wrap(errors.ErrUnsupported, "raw statements require the relational store")
}

func filterColumns(filters Filters) []string {
	cols := make([]string, 0, len(filters))
	for k := range filters {
		cols = append(cols, k)
	}
	return cols
}

func rowColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	return cols
}

func matches(row Row, filters Filters) bool {
	for col, want := range filters {
		if !looseEqual(row[col], want) {
			return false
		}
	}
	return true
}

// looseEqual compares values across the numeric representations the two
// stores produce (int vs int64 vs float64, string vs []byte).
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if as, aok := asString(a); aok {
		bs, bok := asString(b)
		return bok && as == bs
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
