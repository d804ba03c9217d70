package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/chanrpc/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest(TransportHTTP, "GET", "/health", 200, 12*time.Millisecond)
	before := testutil.ToFloat64(rpcCalls.WithLabelValues("math", "add", "200"))
	RecordCall("math", "add", 200, 3*time.Millisecond)
	if got := testutil.ToFloat64(rpcCalls.WithLabelValues("math", "add", "200")); got != before+1 {
		t.Fatalf("expected call counter to advance, got %v from %v", got, before)
	}
}

func TestRecorderTracksChannels(t *testing.T) {
	testlog.Start(t)

	var rec Recorder
	before := testutil.ToFloat64(channelsActive)
	rec.ChannelOpened()
	rec.ChannelOpened()
	rec.ChannelClosed()
	if got := testutil.ToFloat64(channelsActive); got != before+1 {
		t.Fatalf("expected one extra active channel, got %v from %v", got, before)
	}
	rec.ChannelClosed()
	rec.ObserveCall("auth", "signIn", 403, time.Millisecond)
	if got := testutil.ToFloat64(rpcCalls.WithLabelValues("auth", "signIn", "403")); got < 1 {
		t.Fatalf("expected observed call, got %v", got)
	}
}

func TestMiddlewareRecordsRoutePath(t *testing.T) {
	testlog.Start(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.POST("/api", func(c *gin.Context) {
		TagTransport(c, "api")
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(TransportHTTP, "GET", "/items/:id", "418"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(TransportHTTP, "GET", "/items/:id", "418")); got != before+1 {
		t.Fatalf("expected request counted under route path, got %v", got)
	}

	before = testutil.ToFloat64(httpRequests.WithLabelValues("api", "POST", "/api", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api", nil))
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("api", "POST", "/api", "200")); got != before+1 {
		t.Fatalf("expected request counted under the api transport, got %v", got)
	}
}
