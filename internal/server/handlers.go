package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/ragchat/internal/config"
	"github.com/hyperjump/ragchat/internal/llm"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/tools"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 20

type addDocumentRequest struct {
	Content  string          `json:"content"`
	Title    string          `json:"title"`
	Source   string          `json:"source"`
	Metadata models.Metadata `json:"metadata"`
}

type addFileRequest struct {
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
}

type chatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	s.respondResult(w, s.tools.Execute(r.Context(), tools.GetCollectionInfo{}), http.StatusOK)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, false)
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, true)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, keyword bool) {
	var req models.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("n_results", req.NResults), zap.Bool("keyword", keyword))
	results, err := s.searcher.Do(r.Context(), &req, keyword)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := s.tools.Execute(r.Context(), tools.AddDocument{
		Content:  req.Content,
		Title:    req.Title,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	s.respondResult(w, res, http.StatusCreated)
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	var req addFileRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := s.tools.Execute(r.Context(), tools.AddFile{FilePath: req.FilePath, Title: req.Title})
	s.respondResult(w, res, http.StatusCreated)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	s.respondResult(w, s.tools.Execute(r.Context(), tools.DeleteDocument{DocumentID: id}), http.StatusOK)
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondResult(w, s.tools.Run(r.Context(), name, body), http.StatusOK)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		s.respondError(w, http.StatusNotImplemented, "chat not enabled")
		return
	}
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}
	answer := s.assistant.Chat(r.Context(), req.History, req.Message)
	s.respondJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		s.respondError(w, http.StatusNotFound, "directory not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var req watchRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err == nil {
			path = req.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps a failed result to an HTTP status.
func statusFor(kind tools.ErrorKind) int {
	switch kind {
	case tools.KindValidation:
		return http.StatusBadRequest
	case tools.KindNotFound, tools.KindUnknownTool:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondResult(w http.ResponseWriter, res tools.Result, okStatus int) {
	status := okStatus
	if !res.Success {
		status = statusFor(res.Kind)
	}
	s.respondJSON(w, status, res)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
