// Package repository serves layer-file queries through DuckDB. Files are
// never loaded into a persistent database; every query scans the CSV
// through read_csv_auto, so the API always reflects the latest pipeline
// run without a reload step.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	v1 "github.com/wattmap-nz/wattmap/internal/api/v1"
	"github.com/wattmap-nz/wattmap/internal/registry"
)

// ErrDatasetFileMissing marks a registered dataset whose layer file has
// not been produced yet. Distinct from registry.ErrNotFound: the name is
// known, the pipeline just has not run.
var ErrDatasetFileMissing = errors.New("dataset file not available")

// Opener yields the database handle queries run on. Swappable so tests
// can substitute a mock connection.
type Opener func() (*sql.DB, error)

func defaultOpener() (*sql.DB, error) {
	// In-memory instance per query batch; the data lives in the CSVs.
	return sql.Open("duckdb", "")
}

// Query describes one data-endpoint request after wire validation.
type Query struct {
	Filters []v1.Filter
	Columns []string
	Limit   int
	Offset  int
}

// Result is one page of dataset rows plus the unpaginated match count.
type Result struct {
	Rows      []map[string]interface{}
	TotalRows int64
}

// Repository resolves dataset names through the registry and executes
// queries against their layer files.
type Repository struct {
	registry *registry.Registry
	open     Opener
}

func New(reg *registry.Registry) *Repository {
	return &Repository{registry: reg, open: defaultOpener}
}

// NewWithOpener is the test constructor.
func NewWithOpener(reg *registry.Registry, open Opener) *Repository {
	return &Repository{registry: reg, open: open}
}

// Select returns one page of a dataset.
func (r *Repository) Select(ctx context.Context, dataset string, q Query) (*Result, error) {
	path, err := r.resolvePath(dataset)
	if err != nil {
		return nil, err
	}

	stmt, args, err := buildSelect(path, q)
	if err != nil {
		return nil, err
	}

	db, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open query engine: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", dataset, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", dataset, err)
	}

	// An empty page beyond the data carries no window total; count the
	// matches separately so pagination metadata stays correct.
	if len(result.Rows) == 0 {
		total, err := r.countMatches(ctx, db, path, q.Filters)
		if err != nil {
			return nil, fmt.Errorf("query dataset %s: %w", dataset, err)
		}
		result.TotalRows = total
	}
	return result, nil
}

// Schema describes the dataset's columns as DuckDB infers them.
func (r *Repository) Schema(ctx context.Context, dataset string) ([]v1.ColumnSchema, error) {
	path, err := r.resolvePath(dataset)
	if err != nil {
		return nil, err
	}

	db, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open query engine: %w", err)
	}
	defer db.Close()

	stmt := fmt.Sprintf("DESCRIBE SELECT * FROM read_csv_auto('%s', header=true)", escapePath(path))
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("describe dataset %s: %w", dataset, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe dataset %s: %w", dataset, err)
	}

	var schema []v1.ColumnSchema
	for rows.Next() {
		// DESCRIBE yields name and type first, then nullability columns
		// that vary by DuckDB version; only the first two matter here.
		fields := make([]interface{}, len(cols))
		var name, typ sql.NullString
		fields[0] = &name
		fields[1] = &typ
		for i := 2; i < len(fields); i++ {
			fields[i] = new(interface{})
		}
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("describe dataset %s: scan: %w", dataset, err)
		}
		schema = append(schema, v1.ColumnSchema{Name: name.String, Type: typ.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe dataset %s: %w", dataset, err)
	}
	return schema, nil
}

// Available reports whether the dataset's layer file exists on disk.
// The health endpoint uses it to report data readiness.
func (r *Repository) Available(dataset string) bool {
	_, err := r.resolvePath(dataset)
	return err == nil
}

func (r *Repository) resolvePath(dataset string) (string, error) {
	d, err := r.registry.Resolve(dataset)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(d.Path); err != nil {
		return "", fmt.Errorf("%w: %q", ErrDatasetFileMissing, dataset)
	}
	return d.Path, nil
}

func (r *Repository) countMatches(ctx context.Context, db *sql.DB, path string, filters []v1.Filter) (int64, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM read_csv_auto('%s', header=true)%s", escapePath(path), where)

	var total int64
	if err := db.QueryRowContext(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return total, nil
}

// buildSelect assembles the page query. Column names pass through
// identifier validation before being quoted into the statement; every
// comparison value is a bound argument.
func buildSelect(path string, q Query) (string, []interface{}, error) {
	projection := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, 0, len(q.Columns))
		for _, c := range q.Columns {
			if !v1.ValidColumnName(c) {
				return "", nil, fmt.Errorf("invalid column name %q", c)
			}
			quoted = append(quoted, quoteIdent(c))
		}
		projection = strings.Join(quoted, ", ")
	}

	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, COUNT(*) OVER () AS __total_rows FROM read_csv_auto('%s', header=true)",
		projection, escapePath(path))
	b.WriteString(where)
	// CSV scans carry no inherent order, so pages are only meaningful
	// over a total one. ORDER BY ALL sorts on every selected column.
	b.WriteString(" ORDER BY ALL")
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String(), args, nil
}

// buildWhere renders the conjunctive predicate list, returning the SQL
// fragment (leading " WHERE ..." or empty) and its bound arguments.
func buildWhere(filters []v1.Filter) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}
		col := quoteIdent(f.Column)
		switch f.Op {
		case v1.OpEq:
			clauses = append(clauses, col+" = ?")
			args = append(args, f.Value)
		case v1.OpGte:
			clauses = append(clauses, col+" >= ?")
			args = append(args, f.Value)
		case v1.OpLte:
			clauses = append(clauses, col+" <= ?")
			args = append(args, f.Value)
		case v1.OpIn:
			values := f.Value.([]interface{})
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			clauses = append(clauses, col+" IN ("+placeholders+")")
			args = append(args, values...)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// escapePath makes a filesystem path safe inside a single-quoted SQL
// string literal. read_csv_auto takes the path as a literal, not a bind
// parameter.
func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}

// scanRows converts a generic result set into JSON-ready row maps,
// peeling off the window total column.
func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: []map[string]interface{}{}}
	for rows.Next() {
		fields := make([]interface{}, len(cols))
		for i := range fields {
			fields[i] = new(interface{})
		}
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]interface{}, len(cols)-1)
		for i, col := range cols {
			value := *(fields[i].(*interface{}))
			if col == "__total_rows" {
				total, err := asInt64(value)
				if err != nil {
					return nil, fmt.Errorf("window total: %w", err)
				}
				result.TotalRows = total
				continue
			}
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[col] = value
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var out int64
		_, err := fmt.Sscan(string(n), &out)
		return out, err
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
