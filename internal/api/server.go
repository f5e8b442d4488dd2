// Package api serves estimator output, pump control and recorded sessions
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/deadreckon/internal/db"
	"github.com/banshee-data/deadreckon/internal/history"
	"github.com/banshee-data/deadreckon/internal/httputil"
	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/motion"
	"github.com/banshee-data/deadreckon/internal/navigation"
	"github.com/banshee-data/deadreckon/internal/units"
	"github.com/banshee-data/deadreckon/internal/version"
)

// Pump is the control surface of the running motion pump. Reset restarts
// the estimator and clears the history ring fed by the pump.
type Pump interface {
	Reset(ctx context.Context) error
	Stats() motion.Stats
}

// Config wires a Server. DB and Projector are optional; their routes answer
// 404 when unset.
type Config struct {
	History   *history.Ring
	Pump      Pump
	DB        *db.DB
	Projector *navigation.Projector
	Units     string // default speed units, overridable per request
}

// Server serves the motion, session and version routes.
type Server struct {
	history      *history.Ring
	pump         Pump
	db           *db.DB
	projector    *navigation.Projector
	units        string
	resetTimeout time.Duration
}

// NewServer builds a Server from cfg. Unknown default units fall back to m/s.
func NewServer(cfg Config) *Server {
	u := cfg.Units
	if !units.IsValid(u) {
		u = units.MPS
	}
	return &Server{
		history:      cfg.History,
		pump:         cfg.Pump,
		db:           cfg.DB,
		projector:    cfg.Projector,
		units:        u,
		resetTimeout: 2 * time.Second,
	}
}

// ServeMux returns a mux with every API route registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/motion/latest", s.showLatest)
	mux.HandleFunc("/motion/history", s.listHistory)
	mux.HandleFunc("/motion/stats", s.showStats)
	mux.HandleFunc("/motion/track", s.showTrack)
	mux.HandleFunc("/motion/reset", s.resetMotion)
	mux.HandleFunc("/sessions", s.listSessions)
	mux.HandleFunc("/sessions/{id}/samples", s.listSessionSamples)
	mux.HandleFunc("/sessions/{id}/export", s.exportSession)
	mux.HandleFunc("/version", s.showVersion)
	return mux
}

// SampleResponse is a sample plus its speed in the requested units.
type SampleResponse struct {
	kalman.MotionSample
	Speed float64 `json:"speed"`
	Units string  `json:"units"`
}

// StatsResponse combines pump counters with statistics over the history window.
type StatsResponse struct {
	Pump   motion.Stats    `json:"pump"`
	Window history.Summary `json:"window"`
	Units  string          `json:"units"`
}

func (s *Server) requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, true
	}
	if !units.IsValid(u) {
		httputil.BadRequest(w, fmt.Sprintf("invalid 'units' parameter: must be one of %s", units.ValidUnitsString()))
		return "", false
	}
	return u, true
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	latest, ok := s.history.Latest()
	if !ok {
		httputil.NotFound(w, "no samples yet")
		return
	}
	httputil.WriteJSONOK(w, SampleResponse{
		MotionSample: latest,
		Speed:        units.ConvertSpeed(latest.Speed(), u),
		Units:        u,
	})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.history.Snapshot()
	limit, err := httputil.QueryInt(r, "limit", len(snap), 1, s.history.Cap())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if limit < len(snap) {
		snap = snap[len(snap)-limit:]
	}
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	sum := s.history.Summary()
	sum.MeanSpeed = units.ConvertSpeed(sum.MeanSpeed, u)
	sum.StdDevSpeed = units.ConvertSpeed(sum.StdDevSpeed, u)
	sum.MaxSpeed = units.ConvertSpeed(sum.MaxSpeed, u)

	resp := StatsResponse{Window: sum, Units: u}
	if s.pump != nil {
		resp.Pump = s.pump.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showTrack(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.projector == nil {
		httputil.NotFound(w, "no origin configured")
		return
	}
	body, err := s.projector.FeatureCollection(s.history.Snapshot()).MarshalJSON()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode track: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

func (s *Server) resetMotion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.pump == nil {
		httputil.ServiceUnavailable(w, "motion pump not running")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.resetTimeout)
	defer cancel()
	if err := s.pump.Reset(ctx); err != nil {
		httputil.ServiceUnavailable(w, fmt.Sprintf("reset failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "recording disabled")
		return
	}
	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

// lookupSession writes the error response itself and returns nil on failure.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) *db.Session {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return nil
	}
	if s.db == nil {
		httputil.NotFound(w, "recording disabled")
		return nil
	}
	sess, err := s.db.Session(r.PathValue("id"))
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return nil
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load session: %v", err))
		return nil
	}
	return sess
}

func (s *Server) listSessionSamples(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 1000, 1, 100000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	samples, err := s.db.Samples(sess.ID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return
	}
	if samples == nil {
		samples = []kalman.MotionSample{}
	}
	httputil.WriteJSONOK(w, samples)
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	samples, err := s.db.Samples(sess.ID, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", exportName(sess)))
	out := motion.NewCSVWriter(w)
	for _, sample := range samples {
		if err := out.Consume(sample); err != nil {
			return
		}
	}
	out.Flush()
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

// exportName is "<source>-<yyyymmddThhmmss>" restricted to filename-safe bytes.
func exportName(s *db.Session) string {
	name := []byte(s.Source + "-" + s.StartedAt.UTC().Format("20060102T150405"))
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			name[i] = '_'
		}
	}
	return string(name)
}
