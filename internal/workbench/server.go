// Package workbench exposes the document pipeline over HTTP: uploading,
// browsing the history, entering and running stages, and exporting results.
package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/rfpworkbench/internal/export"
	"github.com/Lllllllleong/rfpworkbench/internal/models"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
	"github.com/Lllllllleong/rfpworkbench/internal/services"
)

// Uploader stores an uploaded document. *services.Uploader implements it.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (pipeline.FileRef, error)
}

// Publisher writes exports to durable storage. *services.ExportPublisher
// implements it.
type Publisher interface {
	Publish(ctx context.Context, documentID, runKey string, artifacts ...export.Artifact) (map[string]string, error)
}

// errNoPublisher is returned by the publish endpoint when no export bucket
// is configured.
var errNoPublisher = errors.New("export publishing is not configured")

// Server serves the workbench API.
type Server struct {
	store     *pipeline.HistoryStore
	runner    *pipeline.Runner
	uploader  Uploader
	publisher Publisher
	newKey    func() string
	log       *slog.Logger
	mux       *http.ServeMux
}

// NewServer wires the routes. publisher may be nil.
func NewServer(store *pipeline.HistoryStore, runner *pipeline.Runner, uploader Uploader, publisher Publisher, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		runner:    runner,
		uploader:  uploader,
		publisher: publisher,
		newKey:    uuid.NewString,
		log:       logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("POST /select", s.handleSelect)
	s.mux.HandleFunc("GET /session", s.handleSession)
	s.mux.HandleFunc("PUT /session/{stage}", s.handleSetOutput)
	s.mux.HandleFunc("DELETE /session", s.handleClear)
	s.mux.HandleFunc("POST /commit", s.handleCommit)
	s.mux.HandleFunc("GET /stages/{stage}", s.handleStage)
	s.mux.HandleFunc("POST /stages/{stage}/run", s.handleRun)
	s.mux.HandleFunc("GET /export/features", s.handleExportFeatures)
	s.mux.HandleFunc("GET /export/scope", s.handleExportScope)
	s.mux.HandleFunc("POST /export/publish", s.handlePublish)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, logCtx, http.StatusBadRequest, fmt.Errorf("expected a multipart form with a \"file\" field: %w", err))
		return
	}
	defer file.Close()

	ref, err := s.uploader.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeFailure(w, logCtx, err)
		return
	}
	id := s.store.AddDocument(ref, header.Filename)
	s.writeJSON(w, logCtx, http.StatusCreated, models.UploadResponse{DocumentID: id, File: ref})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)
	id, _ := s.store.CurrentID()
	s.writeJSON(w, logCtx, http.StatusOK, models.HistoryResponse{
		Documents: s.store.ListHistory(),
		CurrentID: id,
		Capacity:  pipeline.HistoryCapacity,
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)

	var req models.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, logCtx, http.StatusBadRequest, fmt.Errorf("could not parse JSON: %w", err))
		return
	}
	if err := s.store.SelectDocument(req.DocumentID); err != nil {
		s.writeFailure(w, logCtx, err)
		return
	}
	s.writeJSON(w, logCtx, http.StatusOK, s.sessionResponse())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.log.With("path", r.URL.Path), http.StatusOK, s.sessionResponse())
}

// handleSetOutput overwrites one stage's output with a user-edited value.
func (s *Server) handleSetOutput(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)

	stage, ok := s.parseStage(w, logCtx, r)
	if !ok {
		return
	}
	if _, has := s.store.CurrentID(); !has {
		s.writeFailure(w, logCtx, fmt.Errorf("no current document: %w", pipeline.ErrNotFound))
		return
	}

	session := s.store.Session()
	var err error
	switch stage {
	case pipeline.StageTranslate:
		var req models.TranslationRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err == nil {
			session.SetTranslation(pipeline.TranslationOutput{Text: req.Text})
		}
	case pipeline.StageFeatures:
		var req models.FeaturesRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err == nil {
			session.SetFeatures(pipeline.FeatureList{Items: req.Items})
		}
	case pipeline.StageScope:
		var req models.ScopeRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err == nil {
			session.SetScope(pipeline.ScopeOutput{Markdown: req.Markdown})
		}
	default:
		s.writeError(w, logCtx, http.StatusBadRequest, fmt.Errorf("stage %s has no editable output", stage))
		return
	}
	if err != nil {
		s.writeError(w, logCtx, http.StatusBadRequest, fmt.Errorf("could not parse JSON: %w", err))
		return
	}
	logCtx.Info("Stage output overwritten.", "stage", stage.String())
	s.writeJSON(w, logCtx, http.StatusOK, s.sessionResponse())
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.store.Session().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)
	if err := s.store.CommitToHistory(); err != nil {
		s.writeFailure(w, logCtx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)

	stage, ok := s.parseStage(w, logCtx, r)
	if !ok {
		return
	}
	snap := s.store.Session().Snapshot()
	s.writeJSON(w, logCtx, http.StatusOK, models.StageResponse{
		Stage:    stage.String(),
		CanEnter: pipeline.CanEnter(stage, snap),
		Redirect: pipeline.Redirect(stage, snap).String(),
		InFlight: s.runner.InFlight(stage),
	})
}

// handleRun runs a stage for the current document and waits for it. A newer
// run of the same stage, an overwrite or a document switch makes this one
// answer 409.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)

	stage, ok := s.parseStage(w, logCtx, r)
	if !ok {
		return
	}
	id, _ := s.store.CurrentID()
	logCtx = logCtx.With("documentId", id, "stage", stage.String())

	output, err := s.runner.Run(r.Context(), stage)
	if err != nil {
		s.writeFailure(w, logCtx, err)
		return
	}
	s.writeJSON(w, logCtx, http.StatusOK, models.RunResponse{DocumentID: id, Stage: stage.String(), Output: output})
}

func (s *Server) handleExportFeatures(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)
	features, ok := s.store.Session().Features()
	if !ok {
		s.writeFailure(w, logCtx, fmt.Errorf("no features extracted: %w", pipeline.ErrNotFound))
		return
	}
	s.writeArtifact(w, logCtx, export.Features(features))
}

func (s *Server) handleExportScope(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)
	scope, ok := s.store.Session().Scope()
	if !ok {
		s.writeFailure(w, logCtx, fmt.Errorf("no scope of work generated: %w", pipeline.ErrNotFound))
		return
	}
	s.writeArtifact(w, logCtx, export.Scope(scope))
}

// handlePublish writes every export available for the current document to
// the export bucket.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	logCtx := s.log.With("path", r.URL.Path)
	if s.publisher == nil {
		s.writeError(w, logCtx, http.StatusNotImplemented, errNoPublisher)
		return
	}
	id, ok := s.store.CurrentID()
	if !ok {
		s.writeFailure(w, logCtx, fmt.Errorf("no current document: %w", pipeline.ErrNotFound))
		return
	}

	session := s.store.Session()
	var artifacts []export.Artifact
	if features, ok := session.Features(); ok {
		artifacts = append(artifacts, export.Features(features))
	}
	if scope, ok := session.Scope(); ok {
		artifacts = append(artifacts, export.Scope(scope))
	}
	if len(artifacts) == 0 {
		s.writeFailure(w, logCtx, fmt.Errorf("nothing to export for %s: %w", id, pipeline.ErrNotFound))
		return
	}

	uris, err := s.publisher.Publish(r.Context(), id, s.newKey(), artifacts...)
	if err != nil {
		s.writeError(w, logCtx, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, logCtx, http.StatusOK, models.PublishResponse{DocumentID: id, Exports: uris})
}

func (s *Server) sessionResponse() models.SessionResponse {
	id, _ := s.store.CurrentID()
	var inFlight []string
	for _, stage := range pipeline.ProcessingStages {
		if s.runner.InFlight(stage) {
			inFlight = append(inFlight, stage.String())
		}
	}
	return models.SessionResponse{
		DocumentID: id,
		Snapshot:   s.store.Session().Snapshot(),
		InFlight:   inFlight,
		SyncPolicy: s.store.Policy().String(),
	}
}

func (s *Server) parseStage(w http.ResponseWriter, logCtx *slog.Logger, r *http.Request) (pipeline.Stage, bool) {
	stage, err := pipeline.ParseStage(r.PathValue("stage"))
	if err != nil {
		s.writeError(w, logCtx, http.StatusNotFound, err)
		return stage, false
	}
	return stage, true
}

// writeFailure maps a domain error onto its status code.
func (s *Server) writeFailure(w http.ResponseWriter, logCtx *slog.Logger, err error) {
	var guardErr *pipeline.GuardError
	switch {
	case errors.As(err, &guardErr):
		logCtx.Warn("Stage entry refused.", "error", err, "redirect", guardErr.Redirect.String())
		s.writeJSON(w, logCtx, http.StatusConflict, models.ErrorResponse{Error: err.Error(), Redirect: guardErr.Redirect.String()})
	case errors.Is(err, pipeline.ErrNotFound):
		s.writeError(w, logCtx, http.StatusNotFound, err)
	case errors.Is(err, pipeline.ErrNotRunnable):
		s.writeError(w, logCtx, http.StatusBadRequest, err)
	case errors.Is(err, pipeline.ErrSuperseded):
		s.writeError(w, logCtx, http.StatusConflict, err)
	case errors.Is(err, pipeline.ErrProcessingFailed):
		s.writeError(w, logCtx, http.StatusBadGateway, err)
	case errors.Is(err, services.ErrInvalidDocument):
		s.writeError(w, logCtx, http.StatusUnsupportedMediaType, err)
	case errors.Is(err, services.ErrDocumentTooLarge):
		s.writeError(w, logCtx, http.StatusRequestEntityTooLarge, err)
	default:
		s.writeError(w, logCtx, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, logCtx *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logCtx.Error("Request failed", "error", err, "status", status)
	} else {
		logCtx.Warn("Request rejected.", "error", err, "status", status)
	}
	s.writeJSON(w, logCtx, status, models.ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, logCtx *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logCtx.Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeArtifact(w http.ResponseWriter, logCtx *slog.Logger, a export.Artifact) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", a.ContentDisposition())
	if _, err := io.Copy(w, strings.NewReader(a.Body)); err != nil {
		logCtx.Error("Failed to write export", "error", err, "fileName", a.FileName)
	}
}
