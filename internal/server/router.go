// Package server exposes the Node REST surface the placement core
// consumes from (and is queried by) its peers: resource-reading POST
// endpoints, the GET introspection routes, and health/readiness. It
// generalizes the teacher's NewGinServer bootstrap (router + otel
// tracing/metrics middleware + CORS) to this core's thinner surface.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	tracingMiddleware "github.com/flowmesh/placement-core/internal/middleware/otel/tracing"
	metricsMiddleware "github.com/flowmesh/placement-core/internal/middleware/otel/metrics"
	"github.com/flowmesh/placement-core/internal/monitor"
	"github.com/flowmesh/placement-core/internal/registry"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

// valueRequest is the body shape every resource-update POST shares:
// {"value": <number>}. Bucket-label strings such as "100M" do not bind.
type valueRequest struct {
	Value float64 `json:"value" binding:"required"`
}

// Handlers owns the monitor instances and node identity backing the
// Node REST surface from §6.
type Handlers struct {
	NodeID string

	CPU  *monitor.Resource
	RAM  *monitor.Resource
	Link *monitor.Link

	Registry registry.Registry
	Log      *zap.Logger
}

// NewRouter builds the gin engine, instrumented with the otel tracing
// and metrics middleware the way the teacher's NewGinServer does, and
// wires every route named in §6's Node REST surface.
func NewRouter(h *Handlers, tracerProvider oteltrace.TracerProvider, meter metric.Meter, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(
		tracingMiddleware.Middleware(tracerProvider, serviceName),
		metricsMiddleware.Middleware(meter, serviceName),
		gin.Recovery(),
	)

	r.GET("/health", h.health)
	r.GET("/id", h.id)
	r.GET("/node/resource", h.nodeResource)
	r.GET("/node/:id", h.nodeInfo)

	r.POST("/node/resource/cpuAvail", h.setCPUAvail)
	r.POST("/node/resource/memAvail", h.setRAMAvail)
	r.POST("/link/resource/bandwidth/:src/:dst", h.setLinkBandwidth)
	r.POST("/link/resource/latency/:src/:dst", h.setLinkLatency)

	r.POST("/actor/:id/stop", h.stopActor)

	return r
}

func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) id(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": h.NodeID})
}

// nodeResource returns the node's current CPU/RAM availability
// percentages, the endpoint the planner's lazy resource refresh polls
// (§4.4.7).
func (h *Handlers) nodeResource(c *gin.Context) {
	cpuAvail, _, err := h.CPU.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ramAvail, _, err := h.RAM.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_avail_percent": cpuAvail,
		"ram_avail_percent": ramAvail,
	})
}

// nodeInfo returns the Registry's node-<id> record, used by planner
// peers for introspection (§6).
func (h *Handlers) nodeInfo(c *gin.Context) {
	id := c.Param("id")

	raw, found, err := h.Registry.Get(c.Request.Context(), registry.PrefixNode, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})

		return
	}

	c.Data(http.StatusOK, "application/json", []byte(raw))
}

func (h *Handlers) setCPUAvail(c *gin.Context) {
	h.setAvail(c, h.CPU)
}

func (h *Handlers) setRAMAvail(c *gin.Context) {
	h.setAvail(c, h.RAM)
}

func (h *Handlers) setAvail(c *gin.Context, res *monitor.Resource) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := res.SetAvail(c.Request.Context(), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// setLinkBandwidth/setLinkLatency clamp instead of rejecting
// out-of-bucket values, per §7's resolved Open Question.
func (h *Handlers) setLinkBandwidth(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := h.Link.SetBandwidth(c.Request.Context(), c.Param("dst"), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) setLinkLatency(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := h.Link.SetLatency(c.Request.Context(), c.Param("dst"), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// stopActor is the inbound counterpart to nodemanager.Node.StopActor:
// it is the route a peer core calls on this node to stop an actor
// this process happens to be hosting in test/single-binary profiles.
func (h *Handlers) stopActor(c *gin.Context) {
	id := c.Param("id")

	h.Log.Info("stop actor requested", zap.String("actor_id", id))

	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
