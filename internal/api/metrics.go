package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          ServiceMetrics  `json:"mqtt"`
	InfluxDB      ServiceMetrics  `json:"influxdb"`
	Printers      PrinterMetrics  `json:"printers"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// ServiceMetrics reports an optional external service.
type ServiceMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// PrinterMetrics contains printer registry statistics.
type PrinterMetrics struct {
	Total       int            `json:"total"`
	ByProtocol  map[string]int `json:"by_protocol"`
	ConnectedID *string        `json:"connected_id"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = ServiceMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = ServiceMetrics{Enabled: true, Connected: s.influx.IsConnected()}
	}

	printers, err := s.printers.List(r.Context())
	if err != nil {
		s.logger.Error("metrics: listing printers", "error", err)
		writeInternalError(w, "failed to collect printer metrics")
		return
	}
	metrics.Printers = PrinterMetrics{
		Total:      len(printers),
		ByProtocol: make(map[string]int),
	}
	for i := range printers {
		metrics.Printers.ByProtocol[string(printers[i].Protocol)]++
		if printers[i].IsConnected {
			id := printers[i].ID
			metrics.Printers.ConnectedID = &id
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
