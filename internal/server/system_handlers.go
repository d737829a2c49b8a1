package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/esgrade/internal/database"
	"github.com/aristath/esgrade/internal/version"
)

// handleHealth reports liveness plus per-database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	for name, db := range map[string]*database.DB{
		"catalog": s.catalogDB,
		"ratings": s.ratingsDB,
		"cache":   s.cacheDB,
	} {
		if db == nil {
			continue
		}
		if err := db.Conn().PingContext(r.Context()); err != nil {
			checks[name] = "unreachable"
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "esgrade",
		"version":   version.Version,
		"databases": checks,
	})
}

// SystemHandlers serves host-level diagnostics.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system diagnostics handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		databases: databases,
		startedAt: time.Now(),
	}
}

// HandleSystem handles GET /api/system.
func (h *SystemHandlers) HandleSystem(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"version":        version.Version,
	}

	// 100ms sample keeps the endpoint responsive for pollers.
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		response["cpu_percent"] = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		response["memory_used_percent"] = memStat.UsedPercent
		response["memory_used_mb"] = float64(memStat.Used) / 1024 / 1024
		response["memory_total_mb"] = float64(memStat.Total) / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory statistics")
	}

	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		response["disk_used_percent"] = diskStat.UsedPercent
		response["disk_free_gb"] = float64(diskStat.Free) / 1e9
	} else {
		h.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	sizes := make(map[string]float64, len(h.databases))
	for name, db := range h.databases {
		if db == nil {
			continue
		}
		if info, err := os.Stat(db.Path()); err == nil {
			sizes[name] = float64(info.Size()) / 1024 / 1024
		}
	}
	response["database_sizes_mb"] = sizes
	response["data_dir_size_mb"] = h.dirSizeMB(h.dataDir)

	h.writeJSON(w, http.StatusOK, response)
}

// dirSizeMB totals the files under a directory; unreadable entries are skipped.
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}
	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
