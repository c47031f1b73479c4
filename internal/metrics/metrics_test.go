package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordRequest(OutcomeSuccess)
	m.RecordRequest(OutcomeSuccess)
	m.RecordRequest(OutcomeBadRequest)
	m.RecordModelLoad(nil, time.Second)
	m.RecordModelLoad(errors.New("boom"), time.Second)
	m.RecordGPS(true)
	m.RecordDetections(3)
	m.RecordInference(20 * time.Millisecond)
	m.RecordPipeline(40 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.detectRequestsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectRequestsTotal.WithLabelValues(OutcomeBadRequest)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoadsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gpsImagesTotal.WithLabelValues("present")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecobot_detect_requests_total")
	assert.Contains(t, rec.Body.String(), "ecobot_inference_duration_seconds")
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}
