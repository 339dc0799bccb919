package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trajectory_planner/internal/drone"
)

// AddDroneRequest is the body of POST /drones. Empty fields take the
// registry defaults.
type AddDroneRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// SelectRequest selects a drone or waypoint; an empty id deselects.
type SelectRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleListDrones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Drones())
}

func (s *Server) handleAddDrone(w http.ResponseWriter, r *http.Request) {
	var req AddDroneRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusCreated, s.planner.AddDrone(req.Name, req.Color))
}

func (s *Server) handleGetDrone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "droneID")
	d, ok := s.planner.Drone(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Drone not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDrone(w http.ResponseWriter, r *http.Request) {
	var req drone.Update
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := s.planner.UpdateDrone(chi.URLParam(r, "droneID"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRemoveDrone deletes a drone. ?cascade=true deletes its waypoints too.
func (s *Server) handleRemoveDrone(w http.ResponseWriter, r *http.Request) {
	cascade := false
	if v := r.URL.Query().Get("cascade"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cascade flag")
			return
		}
		cascade = b
	}

	if err := s.planner.RemoveDrone(chi.URLParam(r, "droneID"), cascade); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleVisibility(w http.ResponseWriter, r *http.Request) {
	d, err := s.planner.ToggleDroneVisibility(chi.URLParam(r, "droneID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSelectDrone(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.planner.SelectDrone(req.ID); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"selectedDrone": req.ID})
}
