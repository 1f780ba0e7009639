package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/uibridge/cache"
)

// Health is a point-in-time snapshot of server liveness.
type Health struct {
	Status      string      `json:"status"`
	Version     string      `json:"version"`
	Connections int         `json:"connections"`
	Cache       cache.Stats `json:"cache"`
}

// Health returns the current health snapshot.
func (s *Server) Health() Health {
	status := "ok"
	s.mu.RLock()
	if s.closed {
		status = "shutting_down"
	}
	s.mu.RUnlock()

	return Health{
		Status:      status,
		Version:     s.cfg.Version,
		Connections: s.ConnectionCount(),
		Cache:       s.cache.Stats(),
	}
}

// HealthHandler serves the health snapshot as JSON, suitable for liveness
// probes.
func (s *Server) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := s.Health()
		code := http.StatusOK
		if h.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(h)
	})
}
