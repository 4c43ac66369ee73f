package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe("login", ResultSuccess, time.Now())
	m.Observe("login", ResultUnauthorized, time.Now())
	m.Observe("login", ResultUnauthorized, time.Now())
	m.SessionsRevoked(3)
	m.SessionsRevoked(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("login", ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("login", ResultUnauthorized)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.revoked))
}

func TestAuthMetrics_NilIsNoop(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() {
		m.Observe("login", ResultSuccess, time.Now())
		m.SessionsRevoked(1)
	})
}

func TestHandler_ExposesCounters(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.Observe("register", ResultConflict, time.Now())

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `auth_operations_total{operation="register",result="conflict"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
