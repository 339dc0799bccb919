// Package api provides the REST API of a trajectory planning session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"trajectory_planner/internal/curve"
	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/log"
	"trajectory_planner/internal/planner"
	"trajectory_planner/internal/storage"
	"trajectory_planner/internal/trajectory"
	"trajectory_planner/internal/waypoint"
)

// maxBodyBytes bounds request bodies, snapshot imports included.
const maxBodyBytes = 8 << 20

// Server exposes one Planner over HTTP.
type Server struct {
	planner     *planner.Planner
	missions    storage.MissionStore
	renders     *lru.Cache[string, []byte]
	log         *log.Logger
	port        int
	authEnabled bool
	accessLog   bool
	apiKeys     map[string]bool
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string
	// AccessLog turns on chi's request logger.
	AccessLog bool
	// CacheSize is the number of rendered exports kept; 0 means 64.
	CacheSize int
}

// NewServer creates an API server for p. missions may be nil, in which
// case the mission endpoints answer 503. lg may be nil.
func NewServer(p *planner.Planner, missions storage.MissionStore, cfg Config, lg *log.Logger) (*Server, error) {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 64
	}
	renders, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create render cache: %w", err)
	}

	return &Server{
		planner:     p,
		missions:    missions,
		renders:     renders,
		log:         lg,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		accessLog:   cfg.AccessLog,
		apiKeys:     keys,
	}, nil
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("planner API starting", "addr", srv.Addr, "auth", s.authEnabled)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("planner API stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	if s.accessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.authEnabled {
				r.Use(s.authMiddleware)
			}
			s.routes(r)
		})
	})
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/state", s.handleState)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Patch("/", s.handleUpdateSettings)
	})

	r.Route("/drones", func(r chi.Router) {
		r.Get("/", s.handleListDrones)
		r.Post("/", s.handleAddDrone)
		r.Post("/select", s.handleSelectDrone)
		r.Route("/{droneID}", func(r chi.Router) {
			r.Get("/", s.handleGetDrone)
			r.Patch("/", s.handleUpdateDrone)
			r.Delete("/", s.handleRemoveDrone)
			r.Post("/visibility", s.handleToggleVisibility)
			r.Get("/waypoints", s.handleDroneWaypoints)
			r.Post("/waypoints", s.handleAddWaypoint)
			r.Delete("/waypoints", s.handleClearDrone)
			r.Get("/edges", s.handleEdges)
			r.Post("/return", s.handleLinkReturn)
		})
	})

	r.Route("/waypoints", func(r chi.Router) {
		r.Get("/", s.handleAllWaypoints)
		r.Delete("/", s.handleClearAll)
		r.Post("/place", s.handlePlaceWaypoint)
		r.Post("/select", s.handleSelectWaypoint)
		r.Post("/move", s.handleMoveWaypoints)
		r.Route("/{waypointID}", func(r chi.Router) {
			r.Get("/", s.handleGetWaypoint)
			r.Patch("/", s.handleUpdateWaypoint)
			r.Delete("/", s.handleRemoveWaypoint)
			r.Get("/connections", s.handleResolveConnections)
		})
	})

	r.Route("/curve", func(r chi.Router) {
		r.Get("/", s.handleCurveSession)
		r.Post("/", s.handleStartCurve)
		r.Put("/control-points", s.handleUpdateCurve)
		r.Delete("/", s.handleCancelCurve)
		r.Post("/finish", s.handleFinishCurve)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/snapshot", s.handleExportJSON)
		r.Get("/snapshot.trj", s.handleExportBinary)
		r.Get("/csv", s.handleListCSV)
		r.Get("/csv/{droneID}", s.handleExportCSV)
		r.Get("/pdf", s.handleExportPDF)
		r.Get("/kml", s.handleExportKML)
	})
	r.Post("/import", s.handleImport)

	r.Route("/missions", func(r chi.Router) {
		r.Get("/", s.handleListMissions)
		r.Put("/{name}", s.handleSaveMission)
		r.Post("/{name}/load", s.handleLoadMission)
		r.Delete("/{name}", s.handleDeleteMission)
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// StateResponse summarises the session.
type StateResponse struct {
	Drones           []drone.Drone    `json:"drones"`
	SelectedDrone    string           `json:"selectedDrone"`
	SelectedWaypoint string           `json:"selectedWaypoint"`
	Settings         planner.Settings `json:"settings"`
	Curve            curve.Session    `json:"curve"`
	Revision         uint64           `json:"revision"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Drones:           s.planner.Drones(),
		SelectedDrone:    s.planner.SelectedDrone(),
		SelectedWaypoint: s.planner.SelectedWaypoint(),
		Settings:         s.planner.Settings(),
		Curve:            s.planner.CurveSession(),
		Revision:         s.planner.Revision(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req planner.SettingsUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.planner.UpdateSettings(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps a model error to its HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, drone.ErrDroneNotFound),
		errors.Is(err, waypoint.ErrWaypointNotFound),
		errors.Is(err, storage.ErrMissionNotFound):
		return http.StatusNotFound
	case errors.Is(err, trajectory.ErrMalformedSnapshot),
		errors.Is(err, waypoint.ErrInvalidType),
		errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrCurveEditActive),
		errors.Is(err, curve.ErrNoCurveEdit):
		return http.StatusConflict
	case errors.Is(err, drone.ErrLastDrone),
		errors.Is(err, waypoint.ErrNoDroneSelected),
		errors.Is(err, waypoint.ErrTooFewWaypoints),
		errors.Is(err, curve.ErrNotConnected),
		errors.Is(err, curve.ErrKeySpaceExhausted),
		errors.Is(err, planner.ErrNoWaypoints):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
