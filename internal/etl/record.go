// Package etl defines the normalized record shape shared by every
// transform pipeline, the pipeline contract, and the runner that drives
// a full processed-layer build.
package etl

import (
	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
)

// Record is one normalized row in the processed layer. Region is one of
// the 16 canonical region names, or empty for national-only sources.
// Category and Sector are source-specific classifications (fuel category,
// vehicle class, consumption sector) and may be empty.
type Record struct {
	Period   period.Month
	Region   string
	Category string
	Sector   string
	Value    decimal.Decimal
}
