package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/work"
)

// SystemHandlers serves host and process diagnostics.
type SystemHandlers struct {
	log     zerolog.Logger
	pool    *work.Pool
	cacheDB *database.DB
	started time.Time

	// cpuSampleWindow is how long cpu.Percent samples; tests shorten it.
	cpuSampleWindow time.Duration
}

// NewSystemHandlers creates system handlers. pool and cacheDB are optional.
func NewSystemHandlers(log zerolog.Logger, pool *work.Pool, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:             log.With().Str("handler", "system").Logger(),
		pool:            pool,
		cacheDB:         cacheDB,
		started:         time.Now(),
		cpuSampleWindow: 100 * time.Millisecond,
	}
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	Goroutines    int             `json:"goroutines"`
	SolverPool    *work.Stats     `json:"solver_pool,omitempty"`
	Cache         *database.Stats `json:"cache,omitempty"`
}

// HandleSystemStatus reports resource usage, solver pool activity and
// cache size.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
	}

	if h.pool != nil {
		stats := h.pool.Stats()
		response.SolverPool = &stats
	}

	if h.cacheDB != nil {
		if err := h.cacheDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database unreachable")
			response.Status = "degraded"
		} else if stats, err := h.cacheDB.GetStats(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get cache statistics")
		} else {
			response.Cache = stats
		}
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// getSystemStats returns CPU and RAM usage percentages.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(h.cpuSampleWindow, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
