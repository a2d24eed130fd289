// Package energyfuel reshapes the wide national energy-consumption
// table (one column per fuel label) into long normalized records keyed
// by fuel category and sector.
package energyfuel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
	"github.com/wattmap-nz/wattmap/internal/etl"
)

const (
	colPeriod = "Period"
	colSector = "Sector"
)

// The six fuel categories of the normalized output.
const (
	CategoryElectricity = "Electricity"
	CategoryCoal        = "Coal"
	CategoryDiesel      = "Diesel"
	CategoryPetrol      = "Petrol"
	CategoryWood        = "Wood"
	CategoryOther       = "Other"
)

// fuelCategory folds raw fuel labels onto the closed category set.
// Unmapped labels fall into Other by design: the source grows new fuel
// labels (LPG, Natural Gas, biofuels) faster than the reporting
// taxonomy, and they all report under Other.
var fuelCategory = map[string]string{
	"Electricity": CategoryElectricity,
	"Coal":        CategoryCoal,
	"Diesel":      CategoryDiesel,
	"Petrol":      CategoryPetrol,
	"Wood":        CategoryWood,
}

// Classify maps a raw fuel label to its category, defaulting to Other.
func Classify(label string) string {
	if c, ok := fuelCategory[strings.TrimSpace(label)]; ok {
		return c
	}
	return CategoryOther
}

// sectorRealignment folds source sector labels that other datasets
// report under a different name.
var sectorRealignment = map[string]string{
	"Agriculture, Forestry and Fishing": "Commercial",
}

// Config locates the pipeline's input and output.
type Config struct {
	InputPath  string
	OutputPath string
}

// Pipeline implements etl.Pipeline for the energy-by-fuel source.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

func (p *Pipeline) Name() string { return "energy_by_fuel" }

// Run reshapes the wide table long, classifies each fuel column, and
// sums values by period, category and sector. This source is national:
// records carry no region.
func (p *Pipeline) Run(ctx context.Context) (etl.Summary, error) {
	summary := etl.NewSummary(p.Name())

	header, rows, err := etl.ReadRawCSV(p.cfg.InputPath)
	if err != nil {
		return summary, err
	}
	cols, err := etl.ColumnIndex(header, colPeriod, colSector)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}

	// Every column other than period and sector is a fuel label.
	type fuelCol struct {
		idx      int
		category string
	}
	var fuels []fuelCol
	for i, name := range header {
		if i == cols[colPeriod] || i == cols[colSector] {
			continue
		}
		fuels = append(fuels, fuelCol{idx: i, category: Classify(name)})
	}
	if len(fuels) == 0 {
		return summary, fmt.Errorf("%s: source has no fuel columns", p.Name())
	}

	summary.RowsIn = len(rows)

	type key struct {
		p        period.Month
		category string
		sector   string
	}
	totals := make(map[key]decimal.Decimal)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := i + 2

		pm, err := parsePeriod(value(row, cols[colPeriod]))
		if err != nil {
			summary.Exclude(etl.ReasonBadPeriod)
			slog.Debug("Row excluded", "pipeline", p.Name(), "line", line, "error", err)
			continue
		}

		sector := value(row, cols[colSector])
		if re, ok := sectorRealignment[sector]; ok {
			sector = re
		}

		// Stage the row's contributions so a bad cell drops the whole
		// row, never half of it.
		staged := make(map[key]decimal.Decimal, len(fuels))
		bad := false
		for _, f := range fuels {
			raw := value(row, f.idx)
			if raw == "" {
				continue // sparse wide table; absent fuel means zero
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				bad = true
				break
			}
			k := key{p: pm, category: f.category, sector: sector}
			staged[k] = staged[k].Add(v)
		}
		if bad {
			summary.Exclude(etl.ReasonBadValue)
			continue
		}
		for k, v := range staged {
			totals[k] = totals[k].Add(v)
		}
	}

	if len(totals) == 0 {
		return summary, fmt.Errorf("%s: %w", p.Name(), etl.ErrNoValidRows)
	}

	records := make([]etl.Record, 0, len(totals))
	for k, v := range totals {
		records = append(records, etl.Record{Period: k.p, Category: k.category, Sector: k.sector, Value: v})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Period != records[j].Period {
			return records[i].Period.Before(records[j].Period)
		}
		if records[i].Category != records[j].Category {
			return records[i].Category < records[j].Category
		}
		return records[i].Sector < records[j].Sector
	})

	if err := etl.WriteRecords(p.cfg.OutputPath, records); err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}
	summary.RowsOut = len(records)
	return summary, nil
}

// parsePeriod accepts both monthly ("2024-01") and annual ("2024")
// period renderings; annual values bucket to January.
func parsePeriod(s string) (period.Month, error) {
	if year, err := strconv.Atoi(s); err == nil {
		return period.FromParts(year, 1)
	}
	return period.Parse(s)
}

func value(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
