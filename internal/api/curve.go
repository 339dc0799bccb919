package api

import (
	"net/http"

	"trajectory_planner/internal/geom"
)

// StartCurveRequest opens a curve edit between two connected waypoints.
type StartCurveRequest struct {
	StartID string `json:"startId"`
	EndID   string `json:"endId"`
}

// ControlPointsRequest replaces the two Bezier control points.
type ControlPointsRequest struct {
	ControlPoints [2]geom.Vec3 `json:"controlPoints"`
}

func (s *Server) handleCurveSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.CurveSession())
}

func (s *Server) handleStartCurve(w http.ResponseWriter, r *http.Request) {
	var req StartCurveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.planner.StartCurve(req.StartID, req.EndID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleUpdateCurve(w http.ResponseWriter, r *http.Request) {
	var req ControlPointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.planner.UpdateCurve(req.ControlPoints); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.planner.CurveSession())
}

func (s *Server) handleCancelCurve(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.planner.CancelCurve()})
}

func (s *Server) handleFinishCurve(w http.ResponseWriter, r *http.Request) {
	res, err := s.planner.FinishCurve()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
