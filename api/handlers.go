package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"casehub/core"
	"casehub/monitor"

	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Instance string                     `json:"instance,omitempty"`
	Ready    bool                       `json:"ready"`
	Services []core.ServiceStatusReport `json:"services"`
}

type statusChangeView struct {
	Service   core.ServiceID           `json:"service"`
	OldStatus core.ServiceStatus       `json:"old_status,omitempty"`
	NewStatus core.ServiceStatus       `json:"new_status"`
	Report    core.ServiceStatusReport `json:"report"`
}

func newStatusChangeView(c monitor.StatusChange) statusChangeView {
	return statusChangeView{
		Service:   c.Service,
		OldStatus: c.OldStatus,
		NewStatus: c.NewStatus,
		Report:    c.Report,
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, errorResponse{Error: message})
}

// health reports the last known status of every service. ready is true
// only when every registered service has been seen UP.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	byService := make(map[core.ServiceID]core.ServiceStatusReport)
	for _, report := range s.monitor.Snapshot() {
		byService[report.Service] = report
	}

	resp := healthResponse{Instance: s.opts.Instance, Ready: true}
	for _, id := range s.monitor.Services() {
		report, ok := byService[id]
		if !ok {
			resp.Ready = false
			continue
		}
		if !report.IsUp() {
			resp.Ready = false
		}
		resp.Services = append(resp.Services, report)
	}
	if resp.Services == nil {
		resp.Services = []core.ServiceStatusReport{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) serviceID(w http.ResponseWriter, r *http.Request) (core.ServiceID, bool) {
	id, err := core.ParseServiceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) serviceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	report, ok := s.monitor.LastKnownStatus(id)
	if !ok {
		respondError(w, http.StatusNotFound, "no status reported yet for "+id.String())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) checkService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serviceID(w, r)
	if !ok {
		return
	}

	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusTooManyRequests, "too many checks, slow down")
		return
	}

	report, err := s.monitor.CheckService(r.Context(), id)
	switch {
	case errors.Is(err, monitor.ErrUnknownService):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Warnw("On-demand check abandoned", "service", id, "error", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) retryStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondError(w, http.StatusNotFound, "retry statistics not available")
		return
	}
	respondJSON(w, http.StatusOK, s.stats.Stats())
}
