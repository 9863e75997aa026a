package api

import "github.com/smazurov/tracknode/internal/metrics/exporters"

// registerMetricsRoutes mounts the Prometheus scrape endpoint. It sits on
// the mux directly so it needs no auth.
func (s *Server) registerMetricsRoutes() {
	handler := s.options.PrometheusHandler
	if handler == nil {
		handler = exporters.HTTPHandler()
	}
	s.mux.Handle("GET /metrics", handler)
}
