package etl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Exclusion reasons surfaced in run summaries. Pipelines count every
// dropped row under exactly one of these.
const (
	ReasonBadPeriod       = "unparseable_period"
	ReasonNegativeValue   = "negative_value"
	ReasonBadValue        = "unparseable_value"
	ReasonUnknownDistrict = "unknown_district"
	ReasonNoConcordance   = "no_concordance_match"
	ReasonUnclassified    = "unclassified_label"
)

// ErrNoValidRows is returned when a pipeline run excludes every input
// row. Partial exclusion is routine; total exclusion is a run failure.
var ErrNoValidRows = errors.New("no valid rows after transformation")

// Pipeline is one source-specific transform unit. Run reads the raw
// source file(s), writes the normalized processed-layer output, and
// reports row-level diagnostics. Row-level failures never fail the run;
// missing inputs and concordance tables do.
type Pipeline interface {
	Name() string
	Run(ctx context.Context) (Summary, error)
}

// RowError describes a single excluded input row. It is a value carried
// in diagnostics, not a control-flow error.
type RowError struct {
	Line   int
	Reason string
	Detail string
}

func (e RowError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Line, e.Reason, e.Detail)
}

// Summary is the diagnostic result of one pipeline run.
type Summary struct {
	RunID    string
	Pipeline string
	RowsIn   int
	RowsOut  int
	Excluded int
	Reasons  map[string]int
}

// NewSummary creates an empty summary with a fresh run ID.
func NewSummary(pipeline string) Summary {
	return Summary{
		RunID:    uuid.NewString(),
		Pipeline: pipeline,
		Reasons:  make(map[string]int),
	}
}

// Exclude records one dropped row under the given reason.
func (s *Summary) Exclude(reason string) {
	s.Excluded++
	s.Reasons[reason]++
}
