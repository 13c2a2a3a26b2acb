package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"terra-platform/internal/export"
	"terra-platform/internal/models"
	"terra-platform/internal/pipeline"
	"terra-platform/internal/services"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

const terraCSV = `date,year,month,lat,lon,co_ppm,aod
2020-01-05,2020,1,0,0,1.0,0.1
2020-01-20,2020,1,0,0,3.0,0.3
2020-02-10,2020,2,0,0,5.0,0.5
2009-12-31,2009,12,0,0,9.0,0.9
`

type brokenSource struct{}

func (brokenSource) Observations(context.Context) ([]models.Observation, error) {
	return nil, errors.New("connection refused")
}

func (brokenSource) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

type testServer struct {
	router  *mux.Router
	metrics *metrics.Collector
}

func newTestServer(t *testing.T, source services.ObservationSource, middleware ...func(*logging.StructuredLogger, *metrics.Collector) mux.MiddlewareFunc) *testServer {
	t.Helper()

	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("terra_test", prometheus.NewRegistry())

	if source == nil {
		source = services.NewFileSourceFromObservations("inline", pipeline.Parse(terraCSV))
	}
	svc := services.NewAtmosphereService(source, logger, collector)
	handler := NewAtmosphereHandler(svc, pipeline.DefaultWindow(), logger, collector)

	var mws []mux.MiddlewareFunc
	for _, mw := range middleware {
		mws = append(mws, mw(logger, collector))
	}

	router := mux.NewRouter()
	router.Use(RequestID)
	handler.RegisterRoutes(router, mws...)

	return &testServer{router: router, metrics: collector}
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type seriesBody struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	DataPoints int    `json:"data_points"`
	Months     int    `json:"months"`
	Monthly    []struct {
		Period  string   `json:"period"`
		COAvg   *float64 `json:"co_avg"`
		AODAvg  *float64 `json:"aod_avg"`
		Samples int      `json:"samples"`
	} `json:"monthly"`
	Summary struct {
		AvgCO  float64 `json:"avg_co"`
		MaxCO  float64 `json:"max_co"`
		AvgAOD float64 `json:"avg_aod"`
		MaxAOD float64 `json:"max_aod"`
	} `json:"summary"`
}

func TestGetSeries_DefaultWindow(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, SeriesPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// the 2009 row lies outside the default window
	assert.Equal(t, "2010-01-01", body.StartDate)
	assert.Equal(t, "2024-12-31", body.EndDate)
	assert.Equal(t, 3, body.DataPoints)
	require.Len(t, body.Monthly, 2)
	assert.Equal(t, "2020-01", body.Monthly[0].Period)
	require.NotNil(t, body.Monthly[0].COAvg)
	assert.InDelta(t, 2.0, *body.Monthly[0].COAvg, 1e-9)
	assert.Equal(t, 2, body.Monthly[0].Samples)
	assert.InDelta(t, 3.0, body.Summary.AvgCO, 1e-9)
	assert.InDelta(t, 0.5, body.Summary.MaxAOD, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.APIRequestsTotal.WithLabelValues(SeriesPath, "GET", "200")))
}

func TestGetSeries_ExplicitWindow(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, SeriesPath+"?start_date=2020-02-01&end_date=2020-02-29")
	require.Equal(t, http.StatusOK, rec.Code)

	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.DataPoints)
	require.Len(t, body.Monthly, 1)
	assert.Equal(t, "2020-02", body.Monthly[0].Period)
}

func TestGetSeries_DegenerateWindow(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, SeriesPath+"?start_date=2099-01-01&end_date=2000-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.DataPoints)
	assert.Empty(t, body.Monthly)
	assert.Zero(t, body.Summary.AvgCO)
	assert.Zero(t, body.Summary.MaxCO)
}

func TestGetSeries_InvalidDate(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"bad start", "?start_date=2020/01/01", "invalid start_date format, expected YYYY-MM-DD"},
		{"bad end", "?end_date=yesterday", "invalid end_date format, expected YYYY-MM-DD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.get(t, SeriesPath+tt.query)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.Equal(t, "Bad Request", body.Error)
		})
	}
}

func TestGetSeries_SourceFailure(t *testing.T) {
	srv := newTestServer(t, brokenSource{})

	rec := srv.get(t, SeriesPath)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.APIErrorsTotal.WithLabelValues("internal_error", SeriesPath)))
}

func TestGetObservations_Pagination(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, ObservationsPath+"?page=2&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			Date  string   `json:"date"`
			COPPM *float64 `json:"co_ppm"`
		} `json:"data"`
		Total      int `json:"total"`
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		TotalPages int `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "2020-02-10", body.Data[0].Date)
}

func TestGetObservations_PageBeyondEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, ObservationsPath+"?page=50")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Empty(t, body.Data)
}

func TestGetObservations_InvalidPaging(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, query := range []string{"?page=0", "?limit=5000", "?limit=abc"} {
		rec := srv.get(t, ObservationsPath+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestExportSeries(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, ExportPath+"?start_date=2020-01-01&end_date=2020-12-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mopitt_2020-01-01_2020-12-31.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	period, err := f.GetCellValue(export.MonthlySheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "2020-02", period)
}

func TestSendJSON_EncodeFailure(t *testing.T) {
	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("terra_test", prometheus.NewRegistry())
	h := NewAtmosphereHandler(nil, pipeline.DefaultWindow(), logger, collector)

	req := httptest.NewRequest(http.MethodGet, SeriesPath, nil)
	rec := httptest.NewRecorder()
	h.sendJSON(rec, req, map[string]float64{"avg_co": math.Inf(1)}, http.StatusOK)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed to encode response", body.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues("encode_error", SeriesPath)))
}

func TestGetSeries_LargeValues(t *testing.T) {
	source := services.NewFileSourceFromObservations("inline",
		pipeline.Parse("header\n2020-01-05,2020,1,0,0,1e308,0.1\n2020-01-20,2020,1,0,0,1e308,0.3\n"))
	srv := newTestServer(t, source)

	rec := srv.get(t, SeriesPath)
	require.Equal(t, http.StatusOK, rec.Code)

	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Monthly, 1)
	require.NotNil(t, body.Monthly[0].COAvg)
	assert.Equal(t, 1e308, *body.Monthly[0].COAvg)
	assert.Equal(t, 1e308, body.Summary.AvgCO)
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestServer(t, nil)
	rec := healthy.get(t, HealthPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	broken := newTestServer(t, brokenSource{})
	rec = broken.get(t, HealthPath)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, HealthPath)
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	req.Header.Set(RequestIDHeader, "7d444840-9dc0-11d1-b245-5ffdce74fad2")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", rec.Header().Get(RequestIDHeader))
}

func TestRequestID_InContext(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), seen)
}

func TestRateLimit(t *testing.T) {
	limited := func(logger *logging.StructuredLogger, m *metrics.Collector) mux.MiddlewareFunc {
		return RateLimit(0.001, 1, logger, m)
	}
	srv := newTestServer(t, nil, limited)

	first := srv.get(t, SeriesPath)
	assert.Equal(t, http.StatusOK, first.Code)

	second := srv.get(t, SeriesPath)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.RateLimitedTotal))

	// health is outside the limited routes
	assert.Equal(t, http.StatusOK, srv.get(t, HealthPath).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	unlimited := func(logger *logging.StructuredLogger, m *metrics.Collector) mux.MiddlewareFunc {
		return RateLimit(0, 0, logger, m)
	}
	srv := newTestServer(t, nil, unlimited)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, srv.get(t, SeriesPath).Code)
	}
}

func TestDocs(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, SeriesPath)
	assert.Contains(t, paths, ObservationsPath)
	assert.Contains(t, paths, ExportPath)

	ui := srv.get(t, "/api/docs")
	require.Equal(t, http.StatusOK, ui.Code)
	assert.Contains(t, ui.Body.String(), "Terra Platform API Documentation")
	assert.Contains(t, ui.Body.String(), "swagger-ui")
}
