package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trajectory_planner/internal/planner"
)

func (s *Server) requireMissions(w http.ResponseWriter) bool {
	if s.missions == nil {
		writeError(w, http.StatusServiceUnavailable, "Mission storage not configured")
		return false
	}
	return true
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMissions(w) {
		return
	}
	infos, err := s.missions.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleSaveMission stores the whole session under {name}.
func (s *Server) handleSaveMission(w http.ResponseWriter, r *http.Request) {
	if !s.requireMissions(w) {
		return
	}
	info, err := s.missions.Save(r.Context(), chi.URLParam(r, "name"), s.planner.Snapshot(""))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.log.Info("mission saved", "name", info.Name, "waypoints", info.Waypoints)
	writeJSON(w, http.StatusOK, info)
}

// handleLoadMission replaces the session with a saved mission.
func (s *Server) handleLoadMission(w http.ResponseWriter, r *http.Request) {
	if !s.requireMissions(w) {
		return
	}
	m, err := s.missions.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := s.planner.Import(m.Snapshot, planner.ImportOptions{}); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      m.Name,
		"waypoints": len(m.Snapshot.Waypoints),
		"savedAt":   m.SavedAt,
	})
}

func (s *Server) handleDeleteMission(w http.ResponseWriter, r *http.Request) {
	if !s.requireMissions(w) {
		return
	}
	if err := s.missions.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
