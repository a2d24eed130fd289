// Package region maps fine-grained geographic keys onto the 16 standard
// reporting regions and aggregates normalized records by the new key.
package region

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/etl"
)

// ErrUnknownDistrict marks a district lookup that has no entry in the
// concordance. Callers decide whether to fail or log-and-skip; the
// mapper never silently defaults.
var ErrUnknownDistrict = errors.New("unknown district")

// Mapper is the immutable district concordance. Construct once and
// inject; there is no package-level lookup state.
type Mapper struct {
	districts map[string]string
}

// NewMapper returns a mapper over the built-in territorial-authority
// concordance.
func NewMapper() *Mapper {
	return &Mapper{districts: districtToRegion}
}

// ToRegion resolves a district name to its canonical region. Lookup is
// case-insensitive and whitespace-tolerant.
func (m *Mapper) ToRegion(district string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(district))
	r, ok := m.districts[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDistrict, district)
	}
	return r, nil
}

// Districts returns every district key in the concordance, sorted.
func (m *Mapper) Districts() []string {
	out := make([]string, 0, len(m.districts))
	for d := range m.districts {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Regions returns the closed 16-region set in north-to-south order.
func Regions() []string {
	out := make([]string, len(canonicalRegions))
	copy(out, canonicalRegions)
	return out
}

// IsCanonical reports whether name is one of the 16 reporting regions.
func IsCanonical(name string) bool {
	for _, r := range canonicalRegions {
		if r == name {
			return true
		}
	}
	return false
}

// Normalize folds legacy region spellings onto the canonical set. Names
// already canonical pass through unchanged; anything else is reported
// as unknown via the second return.
func Normalize(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if IsCanonical(trimmed) {
		return trimmed, true
	}
	if canonical, ok := legacyRegionNames[trimmed]; ok {
		return canonical, true
	}
	return trimmed, false
}

// Op selects the reduction applied to the value column when grouping.
type Op string

const (
	OpSum  Op = "sum"
	OpMean Op = "mean"
)

// GroupBy selects the key columns for Aggregate. Period and Region are
// always part of the key; Category and Sector are opt-in, so records
// differing only in an unselected column collapse into one group.
type GroupBy struct {
	Category bool
	Sector   bool
}

// Aggregate groups normalized records by region and period (plus any
// opted-in columns) and reduces the value column. Records whose region
// is not canonical are rejected: mapping must happen before aggregation.
func Aggregate(records []etl.Record, by GroupBy, op Op) ([]etl.Record, error) {
	if op != OpSum && op != OpMean {
		return nil, fmt.Errorf("unsupported aggregation op %q", op)
	}

	type acc struct {
		rec   etl.Record
		total decimal.Decimal
		n     int64
	}

	groups := make(map[string]*acc)
	order := make([]string, 0)
	for _, r := range records {
		if !IsCanonical(r.Region) {
			return nil, fmt.Errorf("record for period %s: region %q is not canonical", r.Period, r.Region)
		}

		key := r.Period.String() + "\x00" + r.Region
		rec := etl.Record{Period: r.Period, Region: r.Region}
		if by.Category {
			key += "\x00" + r.Category
			rec.Category = r.Category
		}
		if by.Sector {
			key += "\x00" + r.Sector
			rec.Sector = r.Sector
		}

		g, ok := groups[key]
		if !ok {
			g = &acc{rec: rec}
			groups[key] = g
			order = append(order, key)
		}
		g.total = g.total.Add(r.Value)
		g.n++
	}

	out := make([]etl.Record, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		rec := g.rec
		switch op {
		case OpSum:
			rec.Value = g.total
		case OpMean:
			rec.Value = g.total.Div(decimal.NewFromInt(g.n))
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Sector < out[j].Sector
	})
	return out, nil
}
