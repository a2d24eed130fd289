// Package vehicles transforms the motor vehicle register extract into
// normalized monthly EV / fossil-fuel registration counts by region.
package vehicles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/region"
)

// Source column names as they appear in the register extract.
const (
	colYear     = "FIRST_NZ_REGISTRATION_YEAR"
	colMonth    = "FIRST_NZ_REGISTRATION_MONTH"
	colDistrict = "TLA"
	colPower    = "MOTIVE_POWER"
	colCount    = "VEHICLE_COUNT"
)

// Vehicle classes in the normalized output.
const (
	ClassEV         = "EV"
	ClassFossilFuel = "FossilFuel"
)

// motivePowerClass matches the register's motive-power labels onto the
// two-class split. Labels absent from this table are excluded, not
// defaulted: the register vocabulary is closed and a miss means a new
// label upstream that needs a classification decision.
var motivePowerClass = map[string]string{
	"ELECTRIC":                          ClassEV,
	"ELECTRIC [PETROL EXTENDED]":        ClassEV,
	"ELECTRIC [DIESEL EXTENDED]":        ClassEV,
	"PETROL":                            ClassFossilFuel,
	"DIESEL":                            ClassFossilFuel,
	"PETROL HYBRID":                     ClassFossilFuel,
	"DIESEL HYBRID":                     ClassFossilFuel,
	"PETROL ELECTRIC HYBRID":            ClassFossilFuel,
	"PLUGIN PETROL HYBRID":              ClassFossilFuel,
	"ELECTRIC FUEL CELL HYDROGEN":       ClassFossilFuel,
	"ELECTRIC FUEL CELL OTHER":          ClassFossilFuel,
	"PLUG IN FUEL CELL HYDROGEN HYBRID": ClassFossilFuel,
	"PLUG IN FUEL CELL OTHER HYBRID":    ClassFossilFuel,
	"LPG":                               ClassFossilFuel,
	"CNG":                               ClassFossilFuel,
}

// Config locates the pipeline's input and output.
type Config struct {
	InputPath  string
	OutputPath string
}

// Pipeline implements etl.Pipeline for the vehicle registration source.
type Pipeline struct {
	cfg    Config
	mapper *region.Mapper
}

func New(cfg Config, mapper *region.Mapper) *Pipeline {
	return &Pipeline{cfg: cfg, mapper: mapper}
}

func (p *Pipeline) Name() string { return "vehicle_registrations" }

// Run reads the register extract, validates and classifies each row,
// aggregates by region, period and vehicle class, and writes the
// processed layer file.
func (p *Pipeline) Run(ctx context.Context) (etl.Summary, error) {
	summary := etl.NewSummary(p.Name())

	header, rows, err := etl.ReadRawCSV(p.cfg.InputPath)
	if err != nil {
		return summary, err
	}
	cols, err := etl.ColumnIndex(header, colYear, colMonth, colDistrict, colPower, colCount)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", p.Name(), err)
	}

	summary.RowsIn = len(rows)
	records := make([]etl.Record, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, rowErr := p.transformRow(cols, row, i+2)
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

// transformRow maps one raw register row onto the normalized schema.
// All failures here are row-level: reported as a RowError, never fatal.
func (p *Pipeline) transformRow(cols map[string]int, row []string, line int) (etl.Record, *etl.RowError) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	year, errY := strconv.Atoi(get(colYear))
	month, errM := strconv.Atoi(get(colMonth))
	if errY != nil || errM != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadPeriod, Detail: get(colYear) + "/" + get(colMonth)}
	}
	pm, err := period.FromParts(year, month)
	if err != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadPeriod, Detail: err.Error()}
	}

	count, err := decimal.NewFromString(get(colCount))
	if err != nil {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonBadValue, Detail: get(colCount)}
	}
	if count.IsNegative() {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonNegativeValue, Detail: count.String()}
	}

	reg, err := p.mapper.ToRegion(get(colDistrict))
	if err != nil {
		if errors.Is(err, region.ErrUnknownDistrict) {
			return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonUnknownDistrict, Detail: get(colDistrict)}
		}
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonUnknownDistrict, Detail: err.Error()}
	}

	class, ok := motivePowerClass[strings.ToUpper(get(colPower))]
	if !ok {
		return etl.Record{}, &etl.RowError{Line: line, Reason: etl.ReasonUnclassified, Detail: get(colPower)}
	}

	return etl.Record{Period: pm, Region: reg, Category: class, Value: count}, nil
}
