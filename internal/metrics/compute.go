package metrics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
	"github.com/wattmap-nz/wattmap/internal/etl"
)

// Row is one metrics-layer output row. Region, Category and Sector are
// populated only for the dimensions the rule groups by.
type Row struct {
	Period     period.Month
	Region     string
	Category   string
	Sector     string
	MetricCode string
	Value      decimal.Decimal
}

// groupKey identifies one output bucket. Period is kept separate so
// series functions (cumulative, yoy, rolling mean) can walk a group's
// periods in order.
type groupKey struct {
	Region   string
	Category string
	Sector   string
}

type series map[period.Month]decimal.Decimal

// Compute evaluates one rule over a processed dataset's records.
func Compute(rule Rule, records []etl.Record) ([]Row, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metric %q: no input records", rule.Code)
	}
	scale, err := rule.scale()
	if err != nil {
		return nil, err
	}

	var groups map[groupKey]series
	switch rule.Function {
	case FnSum:
		groups = bucketSums(rule, filterCategory(records, rule.Category))
	case FnShare:
		groups = shares(rule, records)
	case FnCumulative:
		groups = cumulative(bucketSums(rule, filterCategory(records, rule.Category)))
	case FnYoYGrowth:
		groups = yoyGrowth(bucketSums(rule, filterCategory(records, rule.Category)))
	}

	if rule.RollingMean > 0 {
		groups = rollingMean(groups, rule.RollingMean)
	}
	if rule.WithTotal {
		groups = addTotals(groups)
	}

	// Series functions can legitimately produce nothing: a first-year
	// dataset has no prior periods for yoy and no full rolling window.
	// That is an empty metric, not a failure.
	return flatten(rule, groups, scale), nil
}

func filterCategory(records []etl.Record, category string) []etl.Record {
	if category == "" {
		return records
	}
	out := make([]etl.Record, 0, len(records))
	for _, r := range records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// key projects a record onto the rule's output dimensions.
func (r Rule) key(rec etl.Record) groupKey {
	var k groupKey
	if r.ByRegion {
		k.Region = rec.Region
	}
	if r.ByCategory {
		k.Category = rec.Category
	}
	if r.BySector {
		k.Sector = rec.Sector
	}
	return k
}

// bucketSums sums record values into (group, period) buckets.
func bucketSums(rule Rule, records []etl.Record) map[groupKey]series {
	out := make(map[groupKey]series)
	for _, rec := range records {
		k := rule.key(rec)
		s, ok := out[k]
		if !ok {
			s = make(series)
			out[k] = s
		}
		s[rec.Period] = s[rec.Period].Add(rec.Value)
	}
	return out
}

// shares computes subgroup / bucket-total per (group, period). A zero
// denominator yields exactly 0 rather than an error: an empty bucket
// has no share, and downstream consumers chart it as such.
func shares(rule Rule, records []etl.Record) map[groupKey]series {
	numerators := bucketSums(rule, filterCategory(records, rule.Category))
	denominators := bucketSums(rule, records)

	out := make(map[groupKey]series)
	for k, denom := range denominators {
		num := numerators[k]
		s := make(series, len(denom))
		for p, total := range denom {
			n := num[p] // zero when the subgroup is absent from the bucket
			if total.IsZero() {
				s[p] = decimal.Zero
				continue
			}
			s[p] = n.Div(total)
		}
		out[k] = s
	}
	return out
}

// cumulative replaces each series with its running sum in period order.
func cumulative(groups map[groupKey]series) map[groupKey]series {
	out := make(map[groupKey]series, len(groups))
	for k, s := range groups {
		acc := decimal.Zero
		run := make(series, len(s))
		for _, p := range sortedPeriods(s) {
			acc = acc.Add(s[p])
			run[p] = acc
		}
		out[k] = run
	}
	return out
}

// yoyGrowth computes (current - prior_year) / prior_year per period.
// Periods with no prior-year value, or a zero one, are omitted rather
// than zero-filled: absence of a baseline is not zero growth.
func yoyGrowth(groups map[groupKey]series) map[groupKey]series {
	out := make(map[groupKey]series, len(groups))
	for k, s := range groups {
		grown := make(series)
		for p, v := range s {
			prior, ok := s[p.AddMonths(-12)]
			if !ok || prior.IsZero() {
				continue
			}
			grown[p] = v.Sub(prior).Div(prior)
		}
		if len(grown) > 0 {
			out[k] = grown
		}
	}
	return out
}

// rollingMean replaces each series with its n-period trailing mean over
// the series' ordered periods; the first n-1 periods are omitted.
func rollingMean(groups map[groupKey]series, n int) map[groupKey]series {
	out := make(map[groupKey]series, len(groups))
	div := decimal.NewFromInt(int64(n))
	for k, s := range groups {
		periods := sortedPeriods(s)
		if len(periods) < n {
			continue
		}
		smoothed := make(series)
		window := decimal.Zero
		for i, p := range periods {
			window = window.Add(s[p])
			if i >= n {
				window = window.Sub(s[periods[i-n]])
			}
			if i >= n-1 {
				smoothed[p] = window.Div(div)
			}
		}
		out[k] = smoothed
	}
	return out
}

// addTotals appends a synthetic "Total" category series per remaining
// (region, sector) group: the per-period sum over the grouped
// categories. The category rows always add up to it exactly, so
// consumers get a conservation check for free.
func addTotals(groups map[groupKey]series) map[groupKey]series {
	out := make(map[groupKey]series, len(groups))
	for k, s := range groups {
		out[k] = s

		tk := groupKey{Region: k.Region, Category: "Total", Sector: k.Sector}
		t, ok := out[tk]
		if !ok {
			t = make(series)
			out[tk] = t
		}
		for p, v := range s {
			t[p] = t[p].Add(v)
		}
	}
	return out
}

func sortedPeriods(s series) []period.Month {
	out := make([]period.Month, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// flatten turns grouped series into sorted, scaled output rows.
func flatten(rule Rule, groups map[groupKey]series, scale decimal.Decimal) []Row {
	var rows []Row
	for k, s := range groups {
		for p, v := range s {
			rows = append(rows, Row{
				Period:     p,
				Region:     k.Region,
				Category:   k.Category,
				Sector:     k.Sector,
				MetricCode: rule.Code,
				Value:      v.Mul(scale),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Period != rows[j].Period {
			return rows[i].Period.Before(rows[j].Period)
		}
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		return rows[i].Sector < rows[j].Sector
	})
	return rows
}
