// Package health exposes liveness and readiness probes for the side HTTP
// server that also serves metrics.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadyChecker reports whether the chat listener is bound and accepting.
type ReadyChecker interface {
	Ready() bool
}

// DepthReporter reports the worker pool's queued backlog.
type DepthReporter interface {
	Depth() int
}

// maxHealthyBacklog is the queue depth beyond which the server reports
// unready: connections are being accepted faster than workers free up.
const maxHealthyBacklog = 64

// Handler manages health check endpoints
type Handler struct {
	listener ReadyChecker
	pool     DepthReporter
}

// NewHandler creates a new health check handler
func NewHandler(listener ReadyChecker, pool DepthReporter) *Handler {
	return &Handler{listener: listener, pool: pool}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if the listener is accepting and the pool is keeping up
// Returns 503 otherwise
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	if h.listener != nil && h.listener.Ready() {
		checks["listener"] = "healthy"
	} else {
		checks["listener"] = "unhealthy"
		allHealthy = false
	}

	if h.pool != nil {
		if h.pool.Depth() <= maxHealthyBacklog {
			checks["pool"] = "healthy"
		} else {
			checks["pool"] = "saturated"
			allHealthy = false
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
