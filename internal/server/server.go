// Package server serves rendered maps, images and animations over HTTP so a
// run's output can be browsed without opening files by hand.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/classify"
	"github.com/sells-group/covidmap/internal/config"
	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/pipeline"
	"github.com/sells-group/covidmap/internal/render"
)

// Server exposes the output directories of a run.
type Server struct {
	paths   config.PathsConfig
	palette *classify.Palette
	log     *zap.Logger
}

// New creates a Server over the configured output directories.
func New(paths config.PathsConfig, palette *classify.Palette) *Server {
	return &Server{
		paths:   paths,
		palette: palette,
		log:     zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/timepoints", s.handleTimepoints)
		r.Get("/maps", s.handleMaps)
	})

	r.Get("/maps/{map}/{date}", s.handleMapPage)

	mountDir(r, "/html", s.paths.HTML)
	mountDir(r, "/png", s.paths.PNG)
	mountDir(r, "/video", s.paths.Video)
	mountDir(r, "/geo", s.paths.Clean)
	return r
}

func mountDir(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Get(prefix+"/*", fs.ServeHTTP)
	r.Head(prefix+"/*", fs.ServeHTTP)
}

func (s *Server) handleTimepoints(w http.ResponseWriter, _ *http.Request) {
	tps, err := pipeline.ListGeoFiles(s.paths.Clean)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]string, len(tps))
	for i, tp := range tps {
		out[i] = tp.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"timepoints": out})
}

type legendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

type mapInfo struct {
	Name   string        `json:"name"`
	Metric string        `json:"metric"`
	Label  string        `json:"label"`
	Legend []legendEntry `json:"legend"`
}

func (s *Server) handleMaps(w http.ResponseWriter, _ *http.Request) {
	out := make([]mapInfo, 0, len(classify.Catalog))
	for _, m := range classify.Catalog {
		info := mapInfo{Name: m.Name, Metric: m.Metric, Label: m.Label}
		if scale, ok := s.palette.Scale(m.Metric); ok {
			for _, e := range render.BuildLegend(scale, s.palette.BelowRange) {
				info.Legend = append(info.Legend, legendEntry{Color: e.Color, Label: e.Label})
			}
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"maps": out})
}

// handleMapPage serves the page for one map and timepoint, addressed by name
// rather than file path.
func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	m, ok := classify.LookupMap(chi.URLParam(r, "map"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown map"})
		return
	}
	tp, err := dataset.ParseTimepoint(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	path := filepath.Join(s.paths.HTML, render.FileBase(m, tp)+".html")
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "map not rendered"})
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// ListenAndServe serves on port until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
