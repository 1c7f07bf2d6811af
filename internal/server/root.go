package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/plugin_parser"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

var Logger = log.NewLogger()

// Updater is the host hook surface the server exposes.
type Updater interface {
	Components() ([]plugin_parser.Component, error)
	Component(id string) (plugin_parser.Component, error)
	CheckForUpdate(ctx context.Context, current *updater.UpdateDescriptor, c plugin_parser.Component, id string) *updater.UpdateDescriptor
	ApplyInPlace(ctx context.Context, id string) (updater.UpdateDescriptor, error)
}

type Server struct {
	updater  Updater
	packages http.Handler
}

// New serves the staged archives in cacheDir on fs under /packages/ next
// to the JSON API backed by u.
func New(u Updater, fs afero.Fs, cacheDir string) *Server {
	httpFs := afero.NewHttpFs(afero.NewBasePathFs(fs, cacheDir))
	return &Server{
		updater:  u,
		packages: http.StripPrefix("/packages", http.FileServer(httpFs.Dir("/"))),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /packages/{file}", s.handlePackage)
	mux.HandleFunc("GET /api/components", s.handleComponents)
	mux.HandleFunc("GET /api/check/{id...}", s.handleCheck)
	mux.HandleFunc("POST /api/apply/{id...}", s.handleApply)
	return mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			Logger.Error("HTTP server shutdown error", "err", err)
			return err
		}
		return nil
	}
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	if strings.Contains(file, "..") || path.Ext(file) != ".zip" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	s.packages.ServeHTTP(w, r)
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	components, err := s.updater.Components()
	if err != nil {
		Logger.Error("Could not list components", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if components == nil {
		components = []plugin_parser.Component{}
	}
	writeJSON(w, http.StatusOK, components)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.updater.Component(id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	d := s.updater.CheckForUpdate(r.Context(), nil, c, id)
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.updater.ApplyInPlace(r.Context(), id)
	if err != nil {
		Logger.Error("In-place update failed", "id", id, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func statusFor(err error) int {
	if errors.Is(err, updater.ErrUnknownComponent) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		Logger.Error("Could not write response", "err", err)
	}
}
