package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/flowmesh/placement-core/internal/monitor"
	"github.com/flowmesh/placement-core/internal/registry"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handlers) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	reg := registry.NewMemoryRegistry()
	h := &Handlers{
		NodeID:   "node-1",
		CPU:      monitor.NewCPU(reg, "node-1").Avail,
		RAM:      monitor.NewRAM(reg, "node-1").Avail,
		Link:     monitor.NewLink(reg, "node-1"),
		Registry: reg,
		Log:      zap.NewNop(),
	}

	r := NewRouter(h, otel.GetTracerProvider(), otel.GetMeterProvider().Meter("test"), "placement-core-test")

	return r, h
}

func TestHealthAndID(t *testing.T) {
	r, h := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), h.NodeID)
}

func TestSetCPUAvailThenNodeResourceReflectsIt(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/node/resource/cpuAvail", strings.NewReader(`{"value": 63}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/node/resource", nil)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cpu_avail_percent":63`) // Current returns the raw written value
}

func TestSetCPUAvailRejectsMissingValue(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/node/resource/cpuAvail", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetLinkBandwidthAndLatency(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/link/resource/bandwidth/node-1/node-2", strings.NewReader(`{"value": 5000}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/link/resource/latency/node-1/node-2", strings.NewReader(`{"value": 2000}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNodeInfoNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/node/unknown", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNodeInfoFound(t *testing.T) {
	r, h := newTestRouter(t)

	require.NoError(t, h.Registry.Set(context.Background(), registry.PrefixNode, "node-2", `{"id":"node-2"}`))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/node/node-2", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"node-2"}`, rec.Body.String())
}

func TestStopActor(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/actor/a1/stop", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
