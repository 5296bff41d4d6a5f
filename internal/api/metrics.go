package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Printer       PrinterMetrics `json:"printer"`
	Entities      EntityMetrics  `json:"entities"`
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
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// PrinterMetrics contains Moonraker connection statistics.
type PrinterMetrics struct {
	Connected   bool   `json:"connected"`
	KlippyReady bool   `json:"klippy_ready"`
	Status      string `json:"status"`
	MessagesTx  uint64 `json:"messages_tx"`
	MessagesRx  uint64 `json:"messages_rx"`
	Reconnects  uint64 `json:"reconnects"`
	Errors      uint64 `json:"errors"`
}

// EntityMetrics contains entity registry statistics.
type EntityMetrics struct {
	Total     int            `json:"total"`
	Available int            `json:"available"`
	ByClass   map[string]int `json:"by_class"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	bridgeMetrics := s.bridge.GetMetrics()

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
		},
		Printer: PrinterMetrics{
			Connected:   bridgeMetrics.PrinterConnected,
			KlippyReady: bridgeMetrics.KlippyReady,
			Status:      bridgeMetrics.Status,
			MessagesTx:  bridgeMetrics.MessagesTx,
			MessagesRx:  bridgeMetrics.MessagesRx,
			Reconnects:  bridgeMetrics.Reconnects,
			Errors:      bridgeMetrics.Errors,
		},
	}

	// MQTT metrics (if available)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	// Entity registry stats
	regStats := s.registry.GetStats()
	metrics.Entities = EntityMetrics{
		Total:     regStats.TotalEntities,
		Available: regStats.Available,
		ByClass:   make(map[string]int),
	}
	for class, count := range regStats.ByClass {
		metrics.Entities.ByClass[string(class)] = count
	}

	writeJSON(w, http.StatusOK, metrics)
}
