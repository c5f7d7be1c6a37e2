// Package server exposes the pipeline operations over HTTP with bearer-token
// auth: token issuance, data refresh, dataset preparation, training,
// prediction, accuracy, and model backup/restore.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/config"
	"github.com/roadsafe/crash-cli/internal/pipeline"
	"github.com/roadsafe/crash-cli/internal/predictor"
)

// Server serves the pipeline HTTP API.
type Server struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
}

// New creates a Server over the pipeline.
func New(cfg *config.Config, pipe *pipeline.Pipeline) *Server {
	return &Server{cfg: cfg, pipe: pipe}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	origin := s.cfg.Auth.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/ping", s.handlePing)
	r.Get("/info", s.handleInfo)
	r.Post("/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/raw", s.handleRaw)
		r.Post("/dataset", s.handleDataset)
		r.Post("/train", s.handleTrain)
		r.Post("/predict", s.handlePredict)
		r.Get("/accuracy", s.handleAccuracy)
		r.Post("/backup", s.handleBackup)
		r.Post("/restore", s.handleRestore)
	})

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.checkAuthConfig(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zap.L().Info("server: shutting down")
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("server: listening", zap.Int("port", s.cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":      "crash severity api",
		"has_model": s.pipe.HasModel(),
	}
	if p, err := predictor.Load(s.pipe.ModelPath()); err == nil {
		info["model"] = p.Info()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.credentialsValid(req.Username, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expires, err := s.issueToken(req.Username)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expires.UTC(),
	})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipe.Ingest(r.Context(), nil)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": result.Files,
		"bytes": result.Bytes,
	})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.pipe.Prepare(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipe.Train(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accuracy":  result.Eval.Accuracy,
		"rows":      result.Eval.Rows,
		"confusion": result.Eval.Confusion,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var values map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := predictor.Load(s.pipe.ModelPath())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	pred, err := p.Predict(values)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	eval, err := s.pipe.Accuracy(r.Context(), "")
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	name, err := s.pipe.Backup()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"archived": name})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	// An empty body restores the most recent archive.
	_ = json.NewDecoder(r.Body).Decode(&req)

	name, err := s.pipe.Restore(req.Name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": name})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
