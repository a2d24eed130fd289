package energyfuel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wattmap-nz/wattmap/internal/etl"
)

func writeSource(t *testing.T, header string, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "energy.csv")
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, input string) (etl.Summary, []etl.Record, error) {
	t.Helper()
	output := filepath.Join(t.TempDir(), "out.csv")
	summary, err := New(Config{InputPath: input, OutputPath: output}).Run(context.Background())
	if err != nil {
		return summary, nil, err
	}
	records, err := etl.ReadRecords(output)
	require.NoError(t, err)
	return summary, records, nil
}

func TestClassify(t *testing.T) {
	require.Equal(t, CategoryElectricity, Classify("Electricity"))
	require.Equal(t, CategoryWood, Classify(" Wood "))

	// The taxonomy is closed; everything the table does not name
	// reports under Other.
	require.Equal(t, CategoryOther, Classify("LPG"))
	require.Equal(t, CategoryOther, Classify("Natural Gas"))
	require.Equal(t, CategoryOther, Classify("Biodiesel"))
}

func TestRunReshapesWideToLong(t *testing.T) {
	input := writeSource(t,
		"Period,Sector,Electricity,Diesel,LPG,Natural Gas",
		"2024-01,Residential,100,0,5,12",
		"2024-01,Industrial,200,50,,8",
		"2024-02,Residential,110,1,6,",
	)

	summary, records, err := run(t, input)
	require.NoError(t, err)
	require.Equal(t, 3, summary.RowsIn)
	require.Equal(t, 0, summary.Excluded)

	byKey := make(map[string]string)
	for _, r := range records {
		require.Empty(t, r.Region, "national source must not carry a region")
		byKey[r.Period.String()+"/"+r.Category+"/"+r.Sector] = r.Value.String()
	}

	require.Equal(t, "100", byKey["2024-01/Electricity/Residential"])
	require.Equal(t, "200", byKey["2024-01/Electricity/Industrial"])
	require.Equal(t, "50", byKey["2024-01/Diesel/Industrial"])

	// LPG and Natural Gas merge into one Other figure per row.
	require.Equal(t, "17", byKey["2024-01/Other/Residential"])
	require.Equal(t, "8", byKey["2024-01/Other/Industrial"])
	require.Equal(t, "6", byKey["2024-02/Other/Residential"])
}

func TestRunRealignsSectors(t *testing.T) {
	input := writeSource(t,
		"Period,Sector,Electricity",
		"2024-01,\"Agriculture, Forestry and Fishing\",30",
		"2024-01,Commercial,70",
	)

	_, records, err := run(t, input)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Commercial", records[0].Sector)
	require.Equal(t, "100", records[0].Value.String())
}

func TestRunAcceptsAnnualPeriods(t *testing.T) {
	input := writeSource(t,
		"Period,Sector,Electricity",
		"2023,Residential,12",
		"2024-06,Residential,1",
	)

	_, records, err := run(t, input)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "2023-01", records[0].Period.String())
	require.Equal(t, "2024-06", records[1].Period.String())
}

func TestRunDropsWholeRowOnBadCell(t *testing.T) {
	input := writeSource(t,
		"Period,Sector,Electricity,Diesel",
		"2024-01,Residential,100,n/a",
		"2024-01,Industrial,50,1",
		"someday,Industrial,50,1",
	)

	summary, records, err := run(t, input)
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		etl.ReasonBadValue:  1,
		etl.ReasonBadPeriod: 1,
	}, summary.Reasons)

	// The bad row's clean Electricity cell must not leak into totals.
	total := "0"
	for _, r := range records {
		if r.Category == CategoryElectricity {
			total = r.Value.String()
		}
	}
	require.Equal(t, "50", total)
}

func TestRunFailsWhenNothingSurvives(t *testing.T) {
	input := writeSource(t,
		"Period,Sector,Electricity",
		"never,Residential,1",
	)

	_, _, err := run(t, input)
	require.ErrorIs(t, err, etl.ErrNoValidRows)
}

func TestRunFailsWithoutFuelColumns(t *testing.T) {
	input := writeSource(t,
		"Period,Sector",
		"2024-01,Residential",
	)

	_, _, err := run(t, input)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no fuel columns")
}
