package v1

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Filter operators accepted by the data endpoint.
const (
	OpEq  = "eq"
	OpGte = "gte"
	OpLte = "lte"
	OpIn  = "in"
)

// identifierPattern bounds what a filter or projection may name. Column
// names travel into SQL as identifiers, so anything outside this set is
// rejected before query building.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is one conjunctive predicate on a dataset column.
type Filter struct {
	// Column is the dataset column the predicate applies to.
	Column string `json:"column"`

	// Op is one of eq, gte, lte, in.
	Op string `json:"op"`

	// Value is the comparison operand. For "in" it must be an array;
	// for the other operators a scalar.
	Value interface{} `json:"value"`
}

// Validate checks the filter's shape. Column existence is checked later
// against the dataset itself.
func (f Filter) Validate() error {
	if !identifierPattern.MatchString(f.Column) {
		return fmt.Errorf("invalid filter column %q", f.Column)
	}

	switch f.Op {
	case OpEq, OpGte, OpLte:
		switch f.Value.(type) {
		case string, float64, bool, json.Number:
		default:
			return fmt.Errorf("filter on %q: operator %q requires a scalar value", f.Column, f.Op)
		}
	case OpIn:
		values, ok := f.Value.([]interface{})
		if !ok {
			return fmt.Errorf("filter on %q: operator \"in\" requires an array value", f.Column)
		}
		if len(values) == 0 {
			return fmt.Errorf("filter on %q: operator \"in\" requires at least one value", f.Column)
		}
		for _, v := range values {
			switch v.(type) {
			case string, float64, bool, json.Number:
			default:
				return fmt.Errorf("filter on %q: \"in\" values must be scalars", f.Column)
			}
		}
	default:
		return fmt.Errorf("filter on %q: unknown operator %q", f.Column, f.Op)
	}
	return nil
}

// ParseFilters decodes the filter query parameter, a JSON array of
// predicates combined with AND. The empty string means no filtering.
func ParseFilters(raw string) ([]Filter, error) {
	if raw == "" {
		return nil, nil
	}

	var filters []Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("filter is not a JSON array of predicates: %w", err)
	}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

// ValidColumnName reports whether name is usable as a projection column.
func ValidColumnName(name string) bool {
	return identifierPattern.MatchString(name)
}

// DatasetInfo is one entry in the dataset listing.
type DatasetInfo struct {
	Name  string `json:"name"`
	Layer string `json:"layer"`
}

// DatasetListResponse is the body of GET /v1/datasets.
type DatasetListResponse struct {
	Datasets []DatasetInfo `json:"datasets"`
	Count    int           `json:"count"`
}

// DataResponse is the body of GET /v1/data/:dataset. Rows preserve the
// dataset's column names as JSON object keys.
type DataResponse struct {
	Dataset string                   `json:"dataset"`
	Rows    []map[string]interface{} `json:"rows"`

	// RowCount is the number of rows in this page; TotalRows is the
	// match count before limit and offset were applied.
	RowCount  int   `json:"row_count"`
	TotalRows int64 `json:"total_rows"`
	Limit     int   `json:"limit"`
	Offset    int   `json:"offset"`
}

// ColumnSchema describes one dataset column.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaResponse is the body of GET /v1/datasets/:dataset/schema.
type SchemaResponse struct {
	Dataset string         `json:"dataset"`
	Columns []ColumnSchema `json:"columns"`
}
