// Package generation transforms grid generation time series into
// normalized monthly kWh totals by region and renewable class. Each raw
// row is one point of connection and trading day with up to 48 half-hour
// interval columns.
package generation

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/region"
)

const (
	colDate = "Trading_Date"
	colPOC  = "POC_Code"
	colFuel = "Fuel_Code"

	// The concordance CSV opens with publisher metadata before the
	// real header row.
	concordancePreamble = 6

	concordColPOC     = "POC code"
	concordColRegion  = "Network reporting region"
	concordColCurrent = "Current flag"
)

// Renewable classes in the normalized output.
const (
	ClassRenewable    = "Renewable"
	ClassNonRenewable = "NonRenewable"
)

// renewableFuels is the closed set of fuel codes counted as renewable.
var renewableFuels = map[string]bool{
	"Hydro": true,
	"Wind":  true,
	"Solar": true,
	"Wood":  true,
	"Geo":   true,
	"GEO":   true,
	"ELE":   true,
	"HYD":   true,
	"SOL":   true,
}

// parenthetical strips operator names like " (Vector)" from region labels.
var parenthetical = regexp.MustCompile(`\s*\(.*?\)`)

// Config locates the pipeline's inputs and output.
type Config struct {
	InputPath       string
	ConcordancePath string
	OutputPath      string
}

// Pipeline implements etl.Pipeline for the generation source.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

func (p *Pipeline) Name() string { return "generation" }

// Run sums the interval columns of each raw row into a daily total,
// joins the point of connection against the region concordance,
// classifies the fuel code, and writes monthly per-region totals split
// by renewable class. A missing concordance file is fatal; rows with no
// concordance match are dropped and counted.
func (p *Pipeline) Run(ctx context.Context) (etl.Summary, error) {
	summary := etl.NewSummary(p.Name())

	pocRegion, err := p.loadConcordance()
	if err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}

	header, rows, err := etl.ReadRawCSV(p.cfg.InputPath)
	if err != nil {
		return summary, err
	}
	cols, err := etl.ColumnIndex(header, colDate, colPOC, colFuel)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}

	// Every TP-prefixed column is a half-hour generation interval.
	var tpCols []int
	for i, name := range header {
		if strings.HasPrefix(name, "TP") {
			tpCols = append(tpCols, i)
		}
	}
	if len(tpCols) == 0 {
		return summary, fmt.Errorf("%s: source has no interval columns", p.Name())
	}

	summary.RowsIn = len(rows)
	records := make([]etl.Record, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, rowErr := transformRow(cols, tpCols, pocRegion, row, i+2)
		if rowErr != nil {
			summary.Exclude(rowErr.Reason)
			slog.Debug("Row excluded", "pipeline", p.Name(), "error", rowErr)
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return summary, fmt.Errorf("%s: %w", p.Name(), etl.ErrNoValidRows)
	}

	aggregated, err := region.Aggregate(records, region.GroupBy{Category: true}, region.OpSum)
	if err != nil {
		return summary, fmt.Errorf("%s: aggregate: %w", p.Name(), err)
	}

	if err := etl.WriteRecords(p.cfg.OutputPath, aggregated); err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}
	summary.RowsOut = len(aggregated)
	return summary, nil
}

// loadConcordance reads the POC-to-region table, keeping only current
// mappings and folding region labels onto the canonical set.
func (p *Pipeline) loadConcordance() (map[string]string, error) {
	f, err := os.Open(p.cfg.ConcordancePath)
	if err != nil {
		return nil, fmt.Errorf("open concordance: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read concordance: %w", err)
	}
	if len(all) <= concordancePreamble+1 {
		return nil, fmt.Errorf("concordance %s has no data rows", p.cfg.ConcordancePath)
	}

	header := all[concordancePreamble]
	cols, err := etl.ColumnIndex(header, concordColPOC, concordColRegion, concordColCurrent)
	if err != nil {
		return nil, fmt.Errorf("concordance %s: %w", p.cfg.ConcordancePath, err)
	}

	out := make(map[string]string)
	for _, row := range all[concordancePreamble+1:] {
		if get(row, cols[concordColCurrent]) != "1" {
			continue
		}
		poc := get(row, cols[concordColPOC])
		if poc == "" {
			continue
		}
		label := strings.TrimSpace(parenthetical.ReplaceAllString(get(row, cols[concordColRegion]), ""))
		reg, ok := region.Normalize(label)
		if !ok {
			slog.Warn("Concordance region not recognized", "poc", poc, "region", label)
			continue
		}
		out[poc] = reg
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("concordance %s yielded no current mappings", p.cfg.ConcordancePath)
	}
	return out, nil
}

func transformRow(cols map[string]int, tpCols []int, pocRegion map[string]string, row []string, line int) (etl.Record, *etl.RowError) {
	poc := get(row, cols[colPOC])
	reg, ok := pocRegion[poc]
	if !ok {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonNoConcordance, Detail: poc}
	}

	t, err := time.Parse("2006-01-02", get(row, cols[colDate]))
	if err != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadPeriod, Detail: get(row, cols[colDate])}
	}

	var kwh decimal.Decimal
	for _, i := range tpCols {
		raw := get(row, i)
		if raw == "" {
			continue // missing interval reads as zero generation
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadValue, Detail: raw}
		}
		kwh = kwh.Add(v)
	}

	class := ClassNonRenewable
	if renewableFuels[get(row, cols[colFuel])] {
		class = ClassRenewable
	}

	return etl.Record{Period: period.FromTime(t), Region: reg, Category: class, Value: kwh}, nil
}

func get(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
