package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apotek-pos/apotek/internal/observability"
	"github.com/apotek-pos/apotek/jobs"
)

func TestMain(m *testing.M) {
	_ = os.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	os.Exit(m.Run())
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "development"}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterJobsHealthWithoutInspector(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{},
		JobHandler: jobs.NewHandler(nil, nil),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rr.Body.String())
}

func TestRouterMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Config: &Config{}, Metrics: metrics})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `apotek_ops_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestRouterWithoutMetricsHidesEndpoint(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.OpsAddr)
	require.Equal(t, 4, cfg.FIFOReportConcurrency)
	require.Equal(t, "*/30 * * * *", cfg.FIFORecalcCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("FIFO_REPORT_CONCURRENCY", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}
