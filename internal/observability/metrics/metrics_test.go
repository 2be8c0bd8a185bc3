package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordVerification(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordVerification(ResultOK)
	m.RecordVerification(ResultOK)
	m.RecordVerification(ResultRevoked)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifications.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(ResultRevoked)))
}

func TestNewToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.NoError(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDenial("not_a_member")
		m.RecordCredentialIssued(true)
		m.ObserveHTTPRequest("GET", "/x", 200, time.Millisecond)
	})
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/v1/organizations/:orgId", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/organizations/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/organizations/:orgId", "204"))
	assert.Equal(t, 2.0, got)
}
