//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	v1 "github.com/wattmap-nz/wattmap/internal/api/v1"
	"github.com/wattmap-nz/wattmap/internal/etl"
	"github.com/wattmap-nz/wattmap/internal/etl/energyfuel"
	"github.com/wattmap-nz/wattmap/internal/etl/gas"
	"github.com/wattmap-nz/wattmap/internal/etl/generation"
	"github.com/wattmap-nz/wattmap/internal/etl/vehicles"
	"github.com/wattmap-nz/wattmap/internal/metrics"
	"github.com/wattmap-nz/wattmap/internal/queryapi"
	"github.com/wattmap-nz/wattmap/internal/region"
	"github.com/wattmap-nz/wattmap/internal/registry"
	"github.com/wattmap-nz/wattmap/internal/repository"
)

type harness struct {
	router *gin.Engine
	reg    *registry.Registry
}

// startHarness writes synthetic raw sources, runs the full pipeline,
// and serves the API over the produced layers with the real DuckDB
// repository.
func startHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	dataDir := filepath.Join(root, "data")

	reg, err := registry.New(registry.Default(dataDir))
	require.NoError(t, err)

	outputs := make(map[string]string)
	for _, d := range reg.List(registry.LayerProcessed) {
		outputs[d.Name] = d.Path
	}

	pipelines := []etl.Pipeline{
		vehicles.New(vehicles.Config{
			InputPath:  writeVehicleSource(t, root),
			OutputPath: outputs["vehicle_registrations"],
		}, region.NewMapper()),
		gas.New(gas.Config{
			InputPath:  writeGasSource(t, root),
			OutputPath: outputs["gas_connections"],
		}),
		energyfuel.New(energyfuel.Config{
			InputPath:  writeEnergySource(t, root),
			OutputPath: outputs["energy_by_fuel"],
		}),
		generation.New(generation.Config{
			InputPath:       writeGenerationSource(t, root),
			ConcordancePath: writeConcordanceSource(t, root),
			OutputPath:      outputs["generation"],
		}),
	}

	runner := etl.NewRunner(pipelines, metrics.NewBuilder(reg, metrics.DefaultRules()))
	summaries, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 4)

	router := gin.New()
	queryapi.NewService(reg, repository.New(reg)).RegisterRoutes(router)
	return &harness{router: router, reg: reg}
}

func (h *harness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func writeCSV(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, "sources", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeVehicleSource(t *testing.T, root string) string {
	rows := []string{
		"FIRST_NZ_REGISTRATION_YEAR,FIRST_NZ_REGISTRATION_MONTH,TLA,MOTIVE_POWER,VEHICLE_COUNT",
		"2023,1,Auckland,ELECTRIC,10",
		"2023,1,Auckland,PETROL,90",
		"2024,1,Auckland,ELECTRIC,20",
		"2024,1,Auckland,PETROL,80",
		"2024,1,Rodney,ELECTRIC,5",
		"2024,1,Dunedin City,DIESEL,40",
	}
	return writeCSV(t, root, "vehicles.csv", strings.Join(rows, "\n")+"\n")
}

func writeGasSource(t *testing.T, root string) string {
	wb := excelize.NewFile()
	defer wb.Close()

	_, err := wb.NewSheet("By Gas Gate")
	require.NoError(t, err)
	_, err = wb.NewSheet("Gate Region")
	require.NoError(t, err)
	require.NoError(t, wb.DeleteSheet("Sheet1"))

	data := [][]interface{}{
		{"Month", "Gas Gate Code", "NEW"},
		{"2024-01-01", "AKL01", "12"},
		{"2024-01-01", "WLG01", "4"},
	}
	concordance := [][]interface{}{
		{"Gas Gate Code", "Gate Region"},
		{"AKL01", "Auckland"},
		{"WLG01", "Wellington"},
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("By Gas Gate", cell, &row))
	}
	for i, row := range concordance {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("Gate Region", cell, &row))
	}

	path := filepath.Join(root, "sources", "gas.xlsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, wb.SaveAs(path))
	return path
}

func writeEnergySource(t *testing.T, root string) string {
	rows := []string{
		"Period,Sector,Electricity,Diesel,LPG",
		"2024-01,Residential,100,0,5",
		"2024-01,Industrial,360,50,8",
	}
	return writeCSV(t, root, "energy.csv", strings.Join(rows, "\n")+"\n")
}

func writeGenerationSource(t *testing.T, root string) string {
	rows := []string{
		"Trading_Date,POC_Code,Fuel_Code,TP1,TP2",
		"2024-01-10,HLY001,Gas,100,100",
		"2024-01-10,HLY001,Wind,300,300",
		"2024-01-10,ROX001,Hydro,500,500",
	}
	return writeCSV(t, root, "generation.csv", strings.Join(rows, "\n")+"\n")
}

func writeConcordanceSource(t *testing.T, root string) string {
	content := "Published by the system operator\n,,\n,,\nExtract date:,2026-08-01\n,,\n,,\n" +
		"POC code,Network reporting region,Current flag\n" +
		"HLY001,Waikato (Genesis),1\n" +
		"ROX001,Otago,1\n"
	return writeCSV(t, root, "poc.csv", content)
}

func TestPipelineToAPI_DatasetsAndData(t *testing.T) {
	h := startHarness(t)

	resp := h.get(t, "/v1/datasets")
	require.Equal(t, http.StatusOK, resp.Code)
	var listing v1.DatasetListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listing))
	require.Equal(t, 12, listing.Count)

	// Processed layer: Rodney folded into Auckland (20 + 5 EVs in 2024-01).
	filter := url.QueryEscape(`[{"column":"region","op":"eq","value":"Auckland"},{"column":"category","op":"eq","value":"EV"},{"column":"period","op":"gte","value":"2024-01"}]`)
	resp = h.get(t, "/v1/data/vehicle_registrations?filter="+filter)
	require.Equal(t, http.StatusOK, resp.Code)

	var page v1.DataResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.RowCount)
	require.InDelta(t, 25.0, asFloat(t, page.Rows[0]["value"]), 1e-9)
}

func TestPipelineToAPI_Metrics(t *testing.T) {
	h := startHarness(t)

	// fleet_electrification for Auckland 2024-01: 25 EV / 105 total.
	filter := url.QueryEscape(`[{"column":"region","op":"eq","value":"Auckland"},{"column":"period","op":"eq","value":"2024-01"}]`)
	resp := h.get(t, "/v1/data/fleet_electrification?filter="+filter)
	require.Equal(t, http.StatusOK, resp.Code)

	var page v1.DataResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.RowCount)
	require.InDelta(t, 25.0/105.0, asFloat(t, page.Rows[0]["value"]), 1e-9)

	// ev_uptake_yoy for Auckland 2024-01: (25 - 10) / 10.
	resp = h.get(t, "/v1/data/ev_uptake_yoy?filter="+filter)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.RowCount)
	require.InDelta(t, 1.5, asFloat(t, page.Rows[0]["value"]), 1e-9)

	// energy_by_fuel_mwh: Industrial electricity 360 TJ in MWh.
	filter = url.QueryEscape(`[{"column":"category","op":"eq","value":"Electricity"},{"column":"sector","op":"eq","value":"Industrial"}]`)
	resp = h.get(t, "/v1/data/energy_by_fuel_mwh?filter="+filter)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.RowCount)
	require.InDelta(t, 360.0/0.036, asFloat(t, page.Rows[0]["value"]), 1e-6)

	// electricity_share 2024-01: (100 + 360) electricity over 523 total
	// (LPG folds into Other).
	resp = h.get(t, "/v1/data/electricity_share")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.RowCount)
	require.InDelta(t, 460.0/523.0, asFloat(t, page.Rows[0]["value"]), 1e-9)
}

// TestPipelineToAPI_Pagination checks page arithmetic against the real
// engine: fixed-size pages are disjoint and concatenate to the larger
// page, with a consistent unpaginated total throughout.
func TestPipelineToAPI_Pagination(t *testing.T) {
	h := startHarness(t)

	fetch := func(limit, offset int) v1.DataResponse {
		resp := h.get(t, fmt.Sprintf("/v1/data/vehicle_registrations?limit=%d&offset=%d", limit, offset))
		require.Equal(t, http.StatusOK, resp.Code)
		var page v1.DataResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
		return page
	}
	rowKeys := func(rows []map[string]interface{}) []string {
		keys := make([]string, 0, len(rows))
		for _, r := range rows {
			keys = append(keys, fmt.Sprintf("%v|%v|%v|%v|%v",
				r["period"], r["region"], r["category"], r["sector"], r["value"]))
		}
		return keys
	}

	first := fetch(2, 0)
	second := fetch(2, 2)
	combined := fetch(4, 0)

	require.Equal(t, 2, first.RowCount)
	require.Equal(t, 2, second.RowCount)
	require.Equal(t, 4, combined.RowCount)
	require.Equal(t, first.TotalRows, second.TotalRows)
	require.Equal(t, first.TotalRows, combined.TotalRows)

	concatenated := append(rowKeys(first.Rows), rowKeys(second.Rows)...)
	require.Equal(t, rowKeys(combined.Rows), concatenated)

	seen := make(map[string]bool, len(concatenated))
	for _, k := range concatenated {
		require.False(t, seen[k], "row %s appears on more than one page", k)
		seen[k] = true
	}
}

func TestPipelineToAPI_SchemaAndErrors(t *testing.T) {
	h := startHarness(t)

	resp := h.get(t, "/v1/datasets/generation/schema")
	require.Equal(t, http.StatusOK, resp.Code)
	var schema v1.SchemaResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &schema))

	names := make([]string, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"period", "region", "category", "sector", "value"}, names)

	require.Equal(t, http.StatusNotFound, h.get(t, "/v1/data/unknown_dataset").Code)
	require.Equal(t, http.StatusBadRequest, h.get(t, "/v1/data/generation?filter=not-json").Code)
}

func asFloat(t *testing.T, v interface{}) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var out float64
		require.NoError(t, json.Unmarshal([]byte(n), &out))
		return out
	default:
		t.Fatalf("unexpected value type %T", v)
		return 0
	}
}
