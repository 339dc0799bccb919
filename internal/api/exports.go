package api

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/planner"
	"trajectory_planner/internal/trajectory"
)

const binaryContentType = "application/vnd.trajectory+zstd"

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := s.planner.ExportJSON(r.URL.Query().Get("drone"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="trajectory.json"`)
	_, _ = w.Write(data)
}

func (s *Server) handleExportBinary(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := trajectory.WriteBinary(&buf, s.planner.Snapshot(r.URL.Query().Get("drone"))); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", binaryContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="trajectory`+trajectory.BinaryExt+`"`)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replaces the session with the posted snapshot. JSON is the
// default; the binary format is chosen by its content type. ?drone=ID
// forces every waypoint onto that drone.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	var snap trajectory.Snapshot
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == binaryContentType || ct == "application/octet-stream" {
		snap, err = trajectory.ReadBinary(bytes.NewReader(body))
	} else {
		snap, err = trajectory.Parse(body)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	opts := planner.ImportOptions{DroneID: r.URL.Query().Get("drone")}
	if err := s.planner.Import(snap, opts); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"waypoints": len(snap.Waypoints)})
}

// CSVFileInfo lists one downloadable coordinate file.
type CSVFileInfo struct {
	DroneID   string `json:"droneId"`
	Name      string `json:"name"`
	Waypoints int    `json:"waypoints"`
}

func (s *Server) handleListCSV(w http.ResponseWriter, r *http.Request) {
	files := []CSVFileInfo{}
	for _, f := range s.planner.CSVFiles() {
		files = append(files, CSVFileInfo{DroneID: f.DroneID, Name: f.Name, Waypoints: len(f.Waypoints)})
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "droneID")
	d, ok := s.planner.Drone(id)
	if !ok {
		s.writeFailure(w, fmt.Errorf("%w: %s", drone.ErrDroneNotFound, id))
		return
	}

	data, err := s.render("csv|"+id, func(buf *bytes.Buffer) error {
		return s.planner.WriteCSV(buf, id)
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", trajectory.CSVFileName(d.Name)))
	_, _ = w.Write(data)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	hidden := r.URL.Query().Get("hidden") == "true"
	title := r.URL.Query().Get("title")
	if title == "" {
		title = "Trajectory plan"
	}

	key := "pdf|" + strconv.FormatBool(hidden) + "|" + title
	data, err := s.render(key, func(buf *bytes.Buffer) error {
		return trajectory.RenderPDF(buf, s.planner.Drones(), s.planner.AllWaypoints(), trajectory.PlanOptions{
			Title:         title,
			GridSize:      s.planner.Settings().GridSize,
			IncludeHidden: hidden,
		})
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(data)
}

// handleExportKML geo-references the scene at ?lat=&lon=[&alt=].
func (s *Server) handleExportKML(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var origin trajectory.Origin
	var err error
	if origin.Latitude, err = strconv.ParseFloat(q.Get("lat"), 64); err != nil {
		writeError(w, http.StatusBadRequest, "lat is required")
		return
	}
	if origin.Longitude, err = strconv.ParseFloat(q.Get("lon"), 64); err != nil {
		writeError(w, http.StatusBadRequest, "lon is required")
		return
	}
	if v := q.Get("alt"); v != "" {
		if origin.Altitude, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid alt")
			return
		}
	}

	key := fmt.Sprintf("kml|%g|%g|%g", origin.Latitude, origin.Longitude, origin.Altitude)
	data, err := s.render(key, func(buf *bytes.Buffer) error {
		k := trajectory.BuildKML("Trajectory plan", s.planner.Drones(), s.planner.AllWaypoints(), origin)
		return trajectory.WriteKML(buf, k)
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	_, _ = w.Write(data)
}

// render returns the cached output for key at the current revision,
// producing it with fn on a miss.
func (s *Server) render(key string, fn func(*bytes.Buffer) error) ([]byte, error) {
	key = strings.Join([]string{key, strconv.FormatUint(s.planner.Revision(), 10)}, "@")
	if data, ok := s.renders.Get(key); ok {
		return data, nil
	}

	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return nil, err
	}
	s.renders.Add(key, buf.Bytes())
	return buf.Bytes(), nil
}
