package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/registry"
)

// metricsHeader is the fixed column order of every metrics-layer file.
var metricsHeader = []string{"period", "region", "category", "sector", "metric_code", "value"}

// Builder evaluates metric rules against the processed layer and writes
// the metrics layer. It implements the runner's MetricsStage.
type Builder struct {
	registry *registry.Registry
	rules    []Rule
}

func NewBuilder(reg *registry.Registry, rules []Rule) *Builder {
	return &Builder{registry: reg, rules: rules}
}

// Run evaluates every rule in order. Each rule resolves its source from
// the processed layer and its output from the metrics layer; a rule
// naming a dataset the registry does not know is a configuration error.
func (b *Builder) Run(ctx context.Context) error {
	for _, rule := range b.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.build(rule); err != nil {
			return fmt.Errorf("metric %q: %w", rule.Code, err)
		}
	}
	return nil
}

func (b *Builder) build(rule Rule) error {
	src, err := b.registry.Resolve(rule.Source)
	if err != nil {
		return err
	}
	if src.Layer != registry.LayerProcessed {
		return fmt.Errorf("source dataset %q is in layer %q, not processed", rule.Source, src.Layer)
	}
	dst, err := b.registry.Resolve(rule.Code)
	if err != nil {
		return err
	}
	if dst.Layer != registry.LayerMetrics {
		return fmt.Errorf("output dataset %q is in layer %q, not metrics", rule.Code, dst.Layer)
	}

	records, err := etl.ReadRecords(src.Path)
	if err != nil {
		return err
	}
	rows, err := Compute(rule, records)
	if err != nil {
		return err
	}
	if err := writeRows(dst.Path, rows); err != nil {
		return err
	}

	slog.Info("Metric built",
		"metric", rule.Code,
		"source", rule.Source,
		"function", rule.Function,
		"rows", len(rows),
	)
	return nil
}

// writeRows writes one metrics-layer CSV, replacing any previous file
// through a same-directory temp file like the processed-layer writer.
func writeRows(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(metricsHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		row := []string{r.Period.String(), r.Region, r.Category, r.Sector, r.MetricCode, r.Value.String()}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}
