package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/waypoint"
)

// PlaceRequest is a click on the ground plane. Type may be a waypoint
// type or "return".
type PlaceRequest struct {
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Altitude float64 `json:"altitude"`
	Type     string  `json:"type"`
}

// MoveRequest reassigns waypoints to another drone.
type MoveRequest struct {
	IDs     []string `json:"ids"`
	DroneID string   `json:"droneId"`
}

func (s *Server) handleAllWaypoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.AllWaypoints())
}

func (s *Server) handleDroneWaypoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "droneID")
	if _, ok := s.planner.Drone(id); !ok {
		writeError(w, http.StatusNotFound, "Drone not found")
		return
	}
	wps := s.planner.Waypoints(id)
	if wps == nil {
		wps = []waypoint.Waypoint{}
	}
	writeJSON(w, http.StatusOK, wps)
}

func (s *Server) handleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypoint.Input
	if !decodeJSON(w, r, &req) {
		return
	}
	wp, err := s.planner.AddWaypoint(chi.URLParam(r, "droneID"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wp)
}

func (s *Server) handlePlaceWaypoint(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = string(waypoint.TypeWaypoint)
	}
	p, err := s.planner.PlaceWaypoint(req.X, req.Z, req.Altitude, req.Type)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	status := http.StatusOK
	if p.Waypoint != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

func (s *Server) handleGetWaypoint(w http.ResponseWriter, r *http.Request) {
	wp, ok := s.planner.Waypoint(chi.URLParam(r, "waypointID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Waypoint not found")
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (s *Server) handleUpdateWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypoint.Update
	if !decodeJSON(w, r, &req) {
		return
	}
	wp, err := s.planner.UpdateWaypoint(chi.URLParam(r, "waypointID"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (s *Server) handleRemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.RemoveWaypoint(chi.URLParam(r, "waypointID")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolveConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.planner.ResolveConnections(chi.URLParam(r, "waypointID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]float64{"connections": conns})
}

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "droneID")
	if _, ok := s.planner.Drone(id); !ok {
		writeError(w, http.StatusNotFound, "Drone not found")
		return
	}
	edges := s.planner.Edges(id)
	if edges == nil {
		edges = []waypoint.Edge{}
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleSelectWaypoint(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.planner.SelectWaypoint(req.ID); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"selectedWaypoint": req.ID})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.planner.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearDrone(w http.ResponseWriter, r *http.Request) {
	n, err := s.planner.ClearDrone(chi.URLParam(r, "droneID"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleMoveWaypoints(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DroneID == "" {
		writeError(w, http.StatusBadRequest, "droneId is required")
		return
	}
	n, err := s.planner.MoveWaypoints(req.IDs, req.DroneID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"moved": n})
}

func (s *Server) handleLinkReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "droneID")
	if _, ok := s.planner.Drone(id); !ok {
		s.writeFailure(w, drone.ErrDroneNotFound)
		return
	}
	linked, err := s.planner.LinkReturn(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"linked": linked})
}
