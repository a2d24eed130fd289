package metrics

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/registry"
)

func TestBuilderRun(t *testing.T) {
	dataDir := t.TempDir()
	reg, err := registry.New(registry.Default(dataDir))
	require.NoError(t, err)

	src, err := reg.Resolve("vehicle_registrations")
	require.NoError(t, err)
	require.NoError(t, etl.WriteRecords(src.Path, []etl.Record{
		rec(t, "2024-01", "Auckland", "EV", "", "5"),
		rec(t, "2024-01", "Auckland", "FossilFuel", "", "15"),
		rec(t, "2024-02", "Auckland", "EV", "", "7"),
		rec(t, "2024-02", "Auckland", "FossilFuel", "", "13"),
	}))

	rules := []Rule{
		{Code: "ev_count", Source: "vehicle_registrations", Function: FnSum, Category: "EV", ByRegion: true},
		{Code: "fleet_electrification", Source: "vehicle_registrations", Function: FnShare, Category: "EV", ByRegion: true},
	}
	b := NewBuilder(reg, rules)
	require.NoError(t, b.Run(context.Background()))

	counts := readMetricFile(t, filepath.Join(dataDir, "metrics", "ev_count.csv"))
	require.Equal(t, [][]string{
		{"2024-01", "Auckland", "", "", "ev_count", "5"},
		{"2024-02", "Auckland", "", "", "ev_count", "7"},
	}, counts)

	shares := readMetricFile(t, filepath.Join(dataDir, "metrics", "fleet_electrification.csv"))
	require.Len(t, shares, 2)
	require.Equal(t, "0.25", shares[0][5])
	require.Equal(t, "0.35", shares[1][5])
}

func TestBuilderUnknownSource(t *testing.T) {
	reg, err := registry.New(registry.Default(t.TempDir()))
	require.NoError(t, err)

	b := NewBuilder(reg, []Rule{{Code: "ev_count", Source: "nope", Function: FnSum}})
	err = b.Run(context.Background())
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestBuilderUnknownOutput(t *testing.T) {
	dataDir := t.TempDir()
	reg, err := registry.New(registry.Default(dataDir))
	require.NoError(t, err)

	src, err := reg.Resolve("vehicle_registrations")
	require.NoError(t, err)
	require.NoError(t, etl.WriteRecords(src.Path, []etl.Record{
		rec(t, "2024-01", "Auckland", "EV", "", "5"),
	}))

	b := NewBuilder(reg, []Rule{{Code: "unregistered_metric", Source: "vehicle_registrations", Function: FnSum}})
	err = b.Run(context.Background())
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestBuilderLayerMismatch(t *testing.T) {
	reg, err := registry.New(registry.Default(t.TempDir()))
	require.NoError(t, err)

	// A metrics dataset cannot feed another metric.
	b := NewBuilder(reg, []Rule{{Code: "ev_count", Source: "renewable_share", Function: FnSum}})
	err = b.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not processed")
}

func TestBuilderMissingSourceFile(t *testing.T) {
	reg, err := registry.New(registry.Default(t.TempDir()))
	require.NoError(t, err)

	b := NewBuilder(reg, []Rule{{Code: "ev_count", Source: "vehicle_registrations", Function: FnSum}})
	err = b.Run(context.Background())
	require.Error(t, err)
}

func TestBuilderHonorsCancellation(t *testing.T) {
	reg, err := registry.New(registry.Default(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(reg, []Rule{{Code: "ev_count", Source: "vehicle_registrations", Function: FnSum}})
	require.ErrorIs(t, b.Run(ctx), context.Canceled)
}

func readMetricFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	require.Equal(t, []string{"period", "region", "category", "sector", "metric_code", "value"}, rows[0])
	return rows[1:]
}
