package etl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wattmap-nz/wattmap/internal/core/period"
)

func TestWriteAndReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	records := []Record{
		{
			Period:   period.Month{Year: 2024, Month: 1},
			Region:   "Auckland",
			Category: "EV",
			Value:    decimal.RequireFromString("12.5"),
		},
		{
			Period: period.Month{Year: 2024, Month: 2},
			Region: "Otago",
			Sector: "Residential",
			Value:  decimal.NewFromInt(3),
		},
	}

	require.NoError(t, WriteRecords(path, records))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestWriteRecordsReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	first := []Record{{Period: period.Month{Year: 2024, Month: 1}, Region: "Auckland", Value: decimal.NewFromInt(1)}}
	second := []Record{{Period: period.Month{Year: 2025, Month: 6}, Region: "Otago", Value: decimal.NewFromInt(2)}}

	require.NoError(t, WriteRecords(path, first))
	require.NoError(t, WriteRecords(path, second))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Equal(t, second, got)

	// No temp files left behind after the swap.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadRecordsRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "short row", content: "period,region,category,sector,value\n2024-01,Auckland\n"},
		{name: "bad period", content: "period,region,category,sector,value\nJanuary,Auckland,,,1\n"},
		{name: "bad value", content: "period,region,category,sector,value\n2024-01,Auckland,,,many\n"},
		{name: "empty file", content: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadRecords(path)
			require.Error(t, err)
		})
	}
}

func TestReadRawCSVToleratesRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n1,2\n1,2,3,4\n"), 0o644))

	header, rows, err := ReadRawCSV(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, header)
	require.Len(t, rows, 3)
	require.Len(t, rows[1], 2)
	require.Len(t, rows[2], 4)
}

func TestColumnIndex(t *testing.T) {
	idx, err := ColumnIndex([]string{"Period", "Sector", "Value"}, "Period", "Value")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"Period": 0, "Value": 2}, idx)

	_, err = ColumnIndex([]string{"Period"}, "Value")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"Value"`)
}
