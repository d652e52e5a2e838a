package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"go.uber.org/zap"
)

type queryRequest struct {
	Question  string `json:"question"`
	Namespace string `json:"namespace"`
}

type queryResponse struct {
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

type sourceRef struct {
	Source string `json:"source"`
}

type globalQueryResponse struct {
	Answer   string      `json:"answer"`
	Sources  []sourceRef `json:"sources"`
	Fallback bool        `json:"fallback,omitempty"`
}

type uploadResponse struct {
	Message   string              `json:"message"`
	Namespace string              `json:"namespace"`
	Stored    []models.FileResult `json:"stored"`
	Skipped   []models.FileResult `json:"skipped"`
}

type historyResponse struct {
	Namespace string                    `json:"namespace"`
	History   []models.ConversationTurn `json:"history"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("namespace", req.Namespace), zap.Int("question_len", len(req.Question)))
	ans, err := s.engine.Answer(r.Context(), &models.Question{Text: req.Question, Namespace: req.Namespace, Mode: models.ModeNamespace})
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	resp := queryResponse{Answer: ans.Text, Fallback: ans.Fallback}
	if len(ans.Sources) > 0 {
		resp.Source = ans.Sources[0]
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueryGlobal(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("global query request", zap.Int("question_len", len(req.Question)))
	ans, err := s.engine.Answer(r.Context(), &models.Question{Text: req.Question, Mode: models.ModeGlobal})
	if err != nil {
		s.fail(w, "global query failed", err)
		return
	}
	resp := globalQueryResponse{Answer: ans.Text, Sources: make([]sourceRef, 0, len(ans.Sources)), Fallback: ans.Fallback}
	for _, k := range ans.Sources {
		resp.Sources = append(resp.Sources, sourceRef{Source: k})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limits := s.config.Ingest
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	namespace := r.FormValue("namespace")
	headers := r.MultipartForm.File["pdf"]
	if len(headers) == 0 {
		s.fail(w, "upload rejected", fmt.Errorf("%w: no files uploaded", models.ErrValidation))
		return
	}
	if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
		s.fail(w, "upload rejected", fmt.Errorf("%w: at most %d files per upload", models.ErrValidation, limits.MaxFiles))
		return
	}

	files := make([]models.UploadedFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.fail(w, "open upload", err)
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.fail(w, "read upload", err)
			return
		}
		files = append(files, models.UploadedFile{Name: h.Filename, Content: content})
	}

	s.logger.Debug("upload request", zap.String("namespace", namespace), zap.Int("files", len(files)))
	res, err := s.indexer.IngestBatch(r.Context(), namespace, files)
	if err != nil {
		if res != nil && errors.Is(err, models.ErrIngestFailed) {
			s.logger.Warn("upload stored nothing", zap.String("namespace", namespace), zap.Error(err))
			s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   models.UserMessage(err),
				"skipped": res.Skipped,
			})
			return
		}
		s.fail(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message:   fmt.Sprintf("Stored %d of %d file(s) in %s.", len(res.Stored), len(files), namespace),
		Namespace: namespace,
		Stored:    res.Stored,
		Skipped:   res.Skipped,
	})
}

func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.Namespaces(r.Context())
	if err != nil {
		s.fail(w, "list namespaces failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, names)
}

func (s *Server) handleDeleteNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	s.logger.Debug("delete namespace request", zap.String("namespace", namespace))
	if err := s.engine.DeleteNamespace(r.Context(), namespace); err != nil {
		s.fail(w, "delete namespace failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Namespace %s deleted successfully.", namespace),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if namespace == models.GlobalNamespace {
		s.fail(w, "history rejected", fmt.Errorf("%w: use /chat/global/history", models.ErrValidation))
		return
	}
	s.writeHistory(w, r, namespace)
}

func (s *Server) handleGlobalHistory(w http.ResponseWriter, r *http.Request) {
	s.writeHistory(w, r, models.GlobalNamespace)
}

func (s *Server) writeHistory(w http.ResponseWriter, r *http.Request, namespace string) {
	turns, err := s.engine.History(r.Context(), namespace)
	if err != nil {
		s.fail(w, "read history failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, historyResponse{Namespace: namespace, History: turns})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := s.engine.Namespaces(ctx)
	if err != nil {
		s.logger.Error("status: list namespaces failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, models.UserMessage(err))
		return
	}
	turns, err := s.conversations.CountTurns(ctx)
	if err != nil {
		s.logger.Error("status: count turns failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, models.UserMessage(err))
		return
	}
	resp := map[string]any{
		"namespaces":         len(names),
		"conversation_turns": turns,
	}

	cfg := s.config
	configInfo := map[string]any{
		"vector_store_type":    cfg.Vector.Type,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"generation_model":     cfg.Generation.Model,
		"chunk_size":           cfg.Retrieval.ChunkSize,
		"chunk_overlap":        cfg.Retrieval.ChunkOverlap,
		"top_k":                cfg.Retrieval.TopK,
		"global_top_k":         cfg.Retrieval.GlobalTopK,
		"database_path":        cfg.Storage.DatabasePath,
	}
	paths := []string{cfg.Storage.DatabasePath}
	if cfg.Vector.Type == "bolt" {
		configInfo["vector_path"] = cfg.Storage.VectorPath
		paths = append(paths, cfg.Storage.VectorPath)
	}
	if cfg.Ingest.InboxDir != "" {
		configInfo["inbox_dir"] = cfg.Ingest.InboxDir
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// fail logs err and writes the status and user-facing message for its kind.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, models.UserMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNamespaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIngestFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
