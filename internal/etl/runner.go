package etl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MetricsStage is the second pipeline stage, run after every source
// pipeline has written its processed output.
type MetricsStage interface {
	Run(ctx context.Context) error
}

// Runner drives one full pipeline run: all source pipelines, then the
// metrics stage. Source pipelines write to disjoint output paths, so
// they run concurrently; the metrics stage reads all of them and runs
// alone afterwards.
type Runner struct {
	pipelines []Pipeline
	metrics   MetricsStage
}

func NewRunner(pipelines []Pipeline, metrics MetricsStage) *Runner {
	return &Runner{pipelines: pipelines, metrics: metrics}
}

// Run executes the configured pipelines and returns their summaries.
// The first pipeline failure cancels the remaining ones; the metrics
// stage only runs when every source pipeline succeeded.
func (r *Runner) Run(ctx context.Context) ([]Summary, error) {
	var (
		mu        sync.Mutex
		summaries []Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range r.pipelines {
		g.Go(func() error {
			started := time.Now()
			summary, err := p.Run(gctx)
			if err != nil {
				slog.Error("Pipeline failed", "pipeline", p.Name(), "error", err)
				return err
			}

			slog.Info("Pipeline complete",
				"pipeline", summary.Pipeline,
				"run_id", summary.RunID,
				"rows_in", summary.RowsIn,
				"rows_out", summary.RowsOut,
				"excluded", summary.Excluded,
				"reasons", summary.Reasons,
				"duration", time.Since(started),
			)

			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}

	if r.metrics != nil {
		started := time.Now()
		if err := r.metrics.Run(ctx); err != nil {
			slog.Error("Metrics stage failed", "error", err)
			return summaries, err
		}
		slog.Info("Metrics stage complete", "duration", time.Since(started))
	}

	return summaries, nil
}
