package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFetch(t *testing.T) {
	m := New()
	m.RecordFetch("transactions", OutcomeLoaded, 12*time.Millisecond)
	m.RecordFetch("transactions", OutcomeSuperseded, 3*time.Millisecond)
	m.RecordFetch("transactions", OutcomeSuperseded, 4*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("transactions", OutcomeLoaded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("transactions", OutcomeSuperseded)))
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.rateLimited))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rateLimited))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordHTTPRequest(http.MethodGet, "/ui/view", http.StatusOK, 5*time.Millisecond)
	m.SetActiveSessions(3)
	m.RecordSeriesCache(true)
	m.RecordImport(4, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `moneyviz_http_requests_total{method="GET",route="/ui/view",status="200"} 1`)
	assert.Contains(t, string(body), "moneyviz_active_sessions 3")
	assert.Contains(t, string(body), `moneyviz_imported_records_total{result="inserted"} 4`)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordImport(7, 2)
	m.RecordImportNotification("invalidated")

	path := filepath.Join(t.TempDir(), "moneyviz_import.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `moneyviz_imported_records_total{result="skipped"} 2`)
	assert.Contains(t, string(body), `moneyviz_import_notifications_total{status="invalidated"} 1`)
}
