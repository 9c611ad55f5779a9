package server

import (
	"net/http"
	"time"
)

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": s.panel.Catalog().Providers(r.Context())})
}

type healthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  map[string]bool `json:"services"`
	MaxRounds int             `json:"maxRounds"`
}

// handleHealth reports healthy while at least one backend is configured.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	services := s.opts.Services
	if services == nil {
		services = make(map[string]bool)
		for _, p := range s.panel.Participants() {
			services[p.ID] = true
		}
	}

	status, code := "unhealthy", http.StatusServiceUnavailable
	for _, ok := range services {
		if ok {
			status, code = "healthy", http.StatusOK
			break
		}
	}

	s.writeJSON(w, code, healthResponse{
		Status:    status,
		Timestamp: s.opts.Clock().UTC(),
		Services:  services,
		MaxRounds: s.panel.Engine().Config().MaxRounds,
	})
}
