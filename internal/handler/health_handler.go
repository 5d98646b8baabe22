package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"parserator/internal/port"
	"parserator/internal/service"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// ServiceStatus is the state of one dependency in the health report.
type ServiceStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status    string                   `json:"status"`
	Services  map[string]ServiceStatus `json:"services"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        port.HealthChecker
	rateStore port.HealthChecker
	gateway   service.ModelGateway
	version   string

	// The model check spends tokens, so its result is reused for llmTTL.
	llmTTL     time.Duration
	mu         sync.Mutex
	llmChecked time.Time
	llmStatus  ServiceStatus
}

// NewHealthHandler creates a new HealthHandler. rateStore may be nil.
func NewHealthHandler(db, rateStore port.HealthChecker, gateway service.ModelGateway, version string) *HealthHandler {
	return &HealthHandler{db: db, rateStore: rateStore, gateway: gateway, version: version, llmTTL: time.Minute}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health handles GET /health
//
//	@Summary	Service health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthReport
//	@Failure	503	{object}	HealthReport
//	@Router		/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	report := HealthReport{
		Status:    statusHealthy,
		Services:  map[string]ServiceStatus{},
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	report.Services["database"] = ping(ctx, h.db)
	if h.rateStore != nil {
		report.Services["rateStore"] = ping(ctx, h.rateStore)
	}
	report.Services["llm"] = h.checkModel(ctx)

	for name, s := range report.Services {
		if s.Status == statusHealthy {
			continue
		}
		if name == "database" {
			report.Status = statusUnhealthy
			break
		}
		report.Status = statusDegraded
	}

	status := http.StatusOK
	if report.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func ping(ctx context.Context, checker port.HealthChecker) ServiceStatus {
	start := time.Now()
	if err := checker.Ping(ctx); err != nil {
		return ServiceStatus{Status: statusUnhealthy, LatencyMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}
	return ServiceStatus{Status: statusHealthy, LatencyMs: time.Since(start).Milliseconds()}
}

func (h *HealthHandler) checkModel(ctx context.Context) ServiceStatus {
	if h.gateway == nil || !h.gateway.Ready() {
		return ServiceStatus{Status: statusUnhealthy, Error: "model gateway not initialized"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.llmChecked.IsZero() && time.Since(h.llmChecked) < h.llmTTL {
		return h.llmStatus
	}

	start := time.Now()
	resp, err := h.gateway.TestConnection(ctx)
	st := ServiceStatus{Status: statusHealthy, LatencyMs: time.Since(start).Milliseconds(), Model: h.gateway.Model()}
	if err != nil {
		st.Status = statusUnhealthy
		st.Error = err.Error()
	} else if resp != nil && resp.Model != "" {
		st.Model = resp.Model
	}
	h.llmChecked = time.Now()
	h.llmStatus = st
	return st
}
