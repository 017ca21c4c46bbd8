package server

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"

	"truthline/internal/metrics"
)

type HealthHandler struct {
	logger *slog.Logger
}

func NewHealthHandler(log *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: log.With(slog.String("handler", "health"))}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

type healthResponse struct {
	Status     string  `json:"status"`
	Uptime     int64   `json:"uptime_seconds"`
	AllocMB    float64 `json:"alloc_mb"`
	SysMB      float64 `json:"sys_mb"`
	Goroutines int     `json:"goroutines"`
}

// Health reports process uptime and memory.
func (h *HealthHandler) Health(c echo.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return c.JSON(http.StatusOK, healthResponse{
		Status:     "ok",
		Uptime:     int64(metrics.Default.Uptime().Seconds()),
		AllocMB:    float64(mem.Alloc) / 1024 / 1024,
		SysMB:      float64(mem.Sys) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
	})
}

func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
