package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalcli/internal/analytics"
	"fiscalcli/internal/config"
	"fiscalcli/internal/operations"
	"fiscalcli/internal/services"
	"fiscalcli/internal/stress"
)

type stubReader struct {
	snapshot *operations.Snapshot
}

func (s *stubReader) Latest() (*operations.Snapshot, bool) {
	if s.snapshot == nil {
		return nil, false
	}
	return s.snapshot, true
}

func stubSnapshot() *operations.Snapshot {
	period := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	return &operations.Snapshot{
		RunID: "run-1",
		Ratios: []stress.RatioRecord{
			{EntityID: "NGA", Period: period, Ratio: stress.RatioDebtPctGDP, Value: 0.375},
			{EntityID: "KEN", Period: period, Ratio: stress.RatioDebtPctGDP, Value: 0.52},
		},
		Regressions: []analytics.RegressionResult{
			{EntityID: "PAN_AFRICA", Status: analytics.StatusOK, NObs: 20},
		},
		Anomalies: []analytics.AnomalyFlag{
			{EntityID: "ZWE", Period: period, Metric: "deficit_pct_gdp", Value: 2.4, ZScore: 2.99},
		},
		Forecasts: []analytics.ForecastRecord{
			{EntityID: "NGA", Metric: "debt_pct_gdp", Period: period.AddDate(1, 0, 0), Point: 0.4, Lower: 0.35, Upper: 0.45, Status: analytics.StatusOK},
			{EntityID: "KEN", Metric: "debt_pct_gdp", Period: period.AddDate(1, 0, 0), Point: 0.55, Lower: 0.5, Upper: 0.6, Status: analytics.StatusOK},
		},
		Quality: operations.QualityReport{InputRecords: 10, RetainedRecords: 9, ArchivedRecords: 1},
	}
}

func testRouter(reader SnapshotReader) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", NewRouter(RouterDeps{
		Snapshots: reader,
		Scenarios: services.NewScenarioService(nil),
		Server:    config.ServerConfig{},
		Version:   "test",
	}))
	return mux
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotEndpoints_NotReady(t *testing.T) {
	router := testRouter(&stubReader{})

	for _, path := range []string{"/api/ratios", "/api/drivers", "/api/anomalies", "/api/forecasts", "/api/quality"} {
		rec := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestGetRatios(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	rec := doRequest(t, router, http.MethodGet, "/api/ratios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID string               `json:"run_id"`
		Count int                  `json:"count"`
		Rows  []stress.RatioRecord `json:"ratios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.Count)
}

func TestGetRatios_EntityFilter(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	rec := doRequest(t, router, http.MethodGet, "/api/ratios?entity=NGA", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                  `json:"count"`
		Rows  []stress.RatioRecord `json:"ratios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "NGA", body.Rows[0].EntityID)
}

func TestGetForecasts_EntityFilter(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	rec := doRequest(t, router, http.MethodGet, "/api/forecasts?entity=KEN", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                        `json:"count"`
		Rows  []analytics.ForecastRecord `json:"forecasts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "KEN", body.Rows[0].EntityID)
}

func TestGetQuality(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	rec := doRequest(t, router, http.MethodGet, "/api/quality", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Quality operations.QualityReport `json:"quality"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 10, body.Quality.InputRecords)
	assert.Equal(t, 1, body.Quality.ArchivedRecords)
}

func TestPostScenario_Success(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	payload := []byte(`{
		"principal": 100000000,
		"rate": 0.05,
		"maturity_periods": 10,
		"rate_reduction": 0.02
	}`)
	rec := doRequest(t, router, http.MethodPost, "/api/scenario", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var body services.ScenarioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.Result.FiscalSpaceFreed, 0.0)
	assert.NotEmpty(t, body.OpportunityCost)
}

func TestPostScenario_InvalidParams(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	payload := []byte(`{"principal": -5}`)
	rec := doRequest(t, router, http.MethodPost, "/api/scenario", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "principal")
}

func TestPostScenario_MalformedBody(t *testing.T) {
	router := testRouter(&stubReader{snapshot: stubSnapshot()})

	rec := doRequest(t, router, http.MethodPost, "/api/scenario", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	assert.Contains(t, rec.Body.String(), "body")
}

func TestHealth(t *testing.T) {
	router := testRouter(&stubReader{})

	rec := doRequest(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status        string `json:"status"`
		SnapshotReady bool   `json:"snapshot_ready"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.False(t, body.SnapshotReady)
}
