// Package gas transforms the gas-industry connections workbook into
// normalized monthly new-connection counts by region. The workbook
// carries the data and its gate-to-region concordance as separate sheets.
package gas

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/wattmap-nz/wattmap/internal/core/period"
	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/region"
)

const (
	dataSheet        = "By Gas Gate"
	concordanceSheet = "Gate Region"

	colDate   = "Month"
	colGate   = "Gas Gate Code"
	colNew    = "NEW"
	colRegion = "Gate Region"
)

// dateLayouts covers the date renderings excelize returns for the
// workbook's month column. The workbook is published with NZ locale
// formats, so ambiguous numeric dates are read day-first.
var dateLayouts = []string{
	"2006-01-02", "02/01/2006", "2/1/06 15:04", "02-01-06", "Jan-06", "2006-01",
}

// Config locates the workbook and the processed output.
type Config struct {
	InputPath  string
	OutputPath string
}

// Pipeline implements etl.Pipeline for the gas connections source.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

func (p *Pipeline) Name() string { return "gas_connections" }

// Run loads both sheets, joins connection rows against the gate
// concordance, and writes monthly per-region totals. Rows with no
// concordance match are dropped and counted; a missing sheet is fatal.
func (p *Pipeline) Run(ctx context.Context) (etl.Summary, error) {
	summary := etl.NewSummary(p.Name())

	wb, err := excelize.OpenFile(p.cfg.InputPath)
	if err != nil {
		return summary, fmt.Errorf("%s: open workbook: %w", p.Name(), err)
	}
	defer wb.Close()

	gateRegion, err := loadConcordance(wb)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}

	rows, err := wb.GetRows(dataSheet)
	if err != nil {
		return summary, fmt.Errorf("%s: read sheet %q: %w", p.Name(), dataSheet, err)
	}
	if len(rows) == 0 {
		return summary, fmt.Errorf("%s: sheet %q is empty", p.Name(), dataSheet)
	}

	cols, err := etl.ColumnIndex(rows[0], colDate, colGate, colNew)
	if err != nil {
		return summary, fmt.Errorf("%s: sheet %q: %w", p.Name(), dataSheet, err)
	}

	summary.RowsIn = len(rows) - 1
	records := make([]etl.Record, 0, summary.RowsIn)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, rowErr := transformRow(cols, gateRegion, row, i+2)
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

	aggregated, err := region.Aggregate(records, region.GroupBy{}, region.OpSum)
	if err != nil {
		return summary, fmt.Errorf("%s: aggregate: %w", p.Name(), err)
	}

	if err := etl.WriteRecords(p.cfg.OutputPath, aggregated); err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}
	summary.RowsOut = len(aggregated)
	return summary, nil
}

// loadConcordance reads the gate-to-region sheet. Regions are folded onto
// the canonical 16-name set; gates whose region cannot be normalized are
// left out of the map so their data rows surface as concordance misses.
func loadConcordance(wb *excelize.File) (map[string]string, error) {
	rows, err := wb.GetRows(concordanceSheet)
	if err != nil {
		return nil, fmt.Errorf("read concordance sheet %q: %w", concordanceSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("concordance sheet %q has no data", concordanceSheet)
	}

	cols, err := etl.ColumnIndex(rows[0], colGate, colRegion)
	if err != nil {
		return nil, fmt.Errorf("concordance sheet %q: %w", concordanceSheet, err)
	}

	out := make(map[string]string, len(rows)-1)
	for _, row := range rows[1:] {
		gate := cell(row, cols[colGate])
		raw := cell(row, cols[colRegion])
		if gate == "" || strings.EqualFold(gate, "None") {
			continue
		}
		reg, ok := region.Normalize(raw)
		if !ok {
			slog.Warn("Concordance region not recognized", "gate", gate, "region", raw)
			continue
		}
		out[gate] = reg
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("concordance sheet %q yielded no usable mappings", concordanceSheet)
	}
	return out, nil
}

func transformRow(cols map[string]int, gateRegion map[string]string, row []string, line int) (etl.Record, *etl.RowError) {
	gate := cell(row, cols[colGate])
	reg, ok := gateRegion[gate]
	if !ok {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonNoConcordance, Detail: gate}
	}

	pm, err := parseMonth(cell(row, cols[colDate]))
	if err != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadPeriod, Detail: cell(row, cols[colDate])}
	}

	raw := cell(row, cols[colNew])
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadValue, Detail: raw}
	}
	if value.IsNegative() {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonNegativeValue, Detail: raw}
	}

	return etl.Record{Period: pm, Region: reg, Value: value}, nil
}

func parseMonth(s string) (period.Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return period.FromTime(t), nil
		}
	}
	return period.Month{}, fmt.Errorf("unparseable date %q", s)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
