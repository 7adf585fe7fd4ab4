package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTenantGuardObserver(t *testing.T) {
	var o TenantGuardObserver
	denied := TenantGuardDenied.WithLabelValues("update", "cross_tenant_write")
	bypass := TenantGuardBypass.WithLabelValues("query")
	beforeDenied, beforeBypass := testutil.ToFloat64(denied), testutil.ToFloat64(bypass)

	o.ObserveDenied("update", "cross_tenant_write")
	o.ObserveBypass("query")
	o.ObserveBypass("query")

	assert.Equal(t, beforeDenied+1, testutil.ToFloat64(denied))
	assert.Equal(t, beforeBypass+2, testutil.ToFloat64(bypass))
}

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/v1/posts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/posts/:id", "204")
	unmatched := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before, beforeUnmatched := testutil.ToFloat64(counter), testutil.ToFloat64(unmatched)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/posts/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/abc", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}

func TestSystemCollector(t *testing.T) {
	NewSystemCollector(nil, 0).CollectOnce()
	assert.Positive(t, testutil.ToFloat64(Goroutines))
}

func TestRecordAction(t *testing.T) {
	c := ActionsTotal.WithLabelValues("create_post", "ok")
	before := testutil.ToFloat64(c)
	RecordAction("create_post", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
