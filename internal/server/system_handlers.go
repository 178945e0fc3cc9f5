package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse reports process health for monitoring.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
}

// handleSystemStatus handles GET /api/system/status requests.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent, memUsedMB := s.getSystemStats()

	s.respondJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		MemoryUsedMB:  memUsedMB,
	})
}

// getSystemStats samples CPU and memory usage. Failures degrade to zeros
// rather than failing the status endpoint.
func (s *Server) getSystemStats() (float64, float64, float64) {
	var cpuPercent, memPercent, memUsedMB float64

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		s.log.Debug().Err(err).Msg("Failed to sample CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
		memUsedMB = float64(memStat.Used) / 1024 / 1024
	} else {
		s.log.Debug().Err(err).Msg("Failed to sample memory usage")
	}

	return cpuPercent, memPercent, memUsedMB
}
