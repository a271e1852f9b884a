package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/atomic"
	"moriportal/internal/services"
)

const healthPingTimeout = 2 * time.Second

type HealthController struct {
	service   services.EngagementServiceInterface
	startTime time.Time
	draining  atomic.Bool
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Store         string  `json:"store"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Store:         "ok",
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := hc.service.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if hc.draining.Load() {
		resp.Status = "draining"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// Drain makes health checks fail so load balancers stop routing here.
func (hc *HealthController) Drain() {
	hc.draining.Store(true)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.EngagementServiceInterface) *HealthController {
	return &HealthController{
		service:   service,
		startTime: time.Now(),
	}
}
