package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/indexer"
	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/internal/source"
	"github.com/hyperjump/codelens/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultChunkPage = 50
	maxChunkPage     = 500
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, indexer.ErrInvalidInput),
		errors.Is(err, indexer.ErrNoSourceRoot),
		errors.Is(err, source.ErrInvalidArchive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int64("repo_id", query.RepositoryID), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	var input models.RepositoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index repository request", zap.String("name", input.Name), zap.String("path", input.Root))
	report, err := s.indexer.IndexRepository(r.Context(), &input)
	if err != nil {
		s.fail(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleUploadRepository(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(256) << 20
	if s.config != nil && s.config.Server.MaxUploadMB > 0 {
		maxBytes = s.config.Server.MaxUploadMB << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", maxBytes>>20))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	name := r.FormValue("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	file, _, err := r.FormFile("archive")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "archive file is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "codelens-upload-*.zip")
	if err != nil {
		s.fail(w, "upload failed", err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		s.fail(w, "upload failed", err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.fail(w, "upload failed", err)
		return
	}

	s.logger.Debug("upload repository request", zap.String("name", name))
	report, err := s.indexer.IndexArchive(r.Context(), name, r.FormValue("description"), tmp.Name())
	if err != nil {
		s.fail(w, "archive indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := s.storage.ListRepositories(r.Context())
	if err != nil {
		s.fail(w, "list repositories failed", err)
		return
	}
	if repos == nil {
		repos = []*models.Repository{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"repositories": repos, "total": len(repos)})
}

type repositoryDetail struct {
	*models.Repository
	Files   int64 `json:"files"`
	Chunks  int64 `json:"chunks"`
	Vectors int   `json:"vectors"`
}

func (s *Server) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	ctx := r.Context()
	repo, err := s.storage.GetRepository(ctx, id)
	if err != nil {
		s.fail(w, "get repository failed", err)
		return
	}
	files, err := s.storage.CountFiles(ctx, id)
	if err != nil {
		s.fail(w, "count files failed", err)
		return
	}
	chunks, err := s.storage.CountChunks(ctx, id)
	if err != nil {
		s.fail(w, "count chunks failed", err)
		return
	}
	detail := repositoryDetail{Repository: repo, Files: files, Chunks: chunks}
	if s.vectors != nil {
		if idx, err := s.vectors.Get(id); err == nil {
			detail.Vectors = idx.Size()
		} else {
			s.logger.Warn("vector index unavailable", zap.Int64("repo_id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	s.logger.Debug("delete repository request", zap.Int64("repo_id", id))
	if err := s.indexer.DeleteRepository(r.Context(), id); err != nil {
		s.fail(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReindexRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	report, err := s.indexer.ReindexRepository(r.Context(), id)
	if err != nil {
		s.fail(w, "reindex failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultChunkPage)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxChunkPage {
		limit = maxChunkPage
	}
	ctx := r.Context()
	if _, err := s.storage.GetRepository(ctx, id); err != nil {
		s.fail(w, "get repository failed", err)
		return
	}
	chunks, err := s.storage.GetChunksByRepository(ctx, id, offset, limit)
	if err != nil {
		s.fail(w, "list chunks failed", err)
		return
	}
	total, err := s.storage.CountChunks(ctx, id)
	if err != nil {
		s.fail(w, "count chunks failed", err)
		return
	}
	if chunks == nil {
		chunks = []*models.CodeChunk{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chunks": chunks,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}
	chunk, err := s.storage.GetChunk(r.Context(), id)
	if err != nil {
		s.fail(w, "get chunk failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repoCount, err := s.storage.CountRepositories(ctx)
	if err != nil {
		s.fail(w, "status: count repositories failed", err)
		return
	}
	fileCount, err := s.storage.CountFiles(ctx, 0)
	if err != nil {
		s.fail(w, "status: count files failed", err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx, 0)
	if err != nil {
		s.fail(w, "status: count chunks failed", err)
		return
	}
	resp := map[string]interface{}{
		"repositories": repoCount,
		"files":        fileCount,
		"chunks":       chunkCount,
	}
	configInfo := map[string]interface{}{}
	if s.vectors != nil {
		resp["loaded_vectors"] = s.vectors.TotalSize()
		configInfo["vector_index_type"] = s.vectors.Type()
	}
	if s.config != nil {
		configInfo["embedding_provider"] = s.config.Embedding.Provider
		configInfo["embedding_dimensions"] = s.config.Embedding.Dimensions
		configInfo["database_path"] = s.config.Storage.DatabasePath
		configInfo["bleve_index_path"] = s.config.Storage.BleveIndexPath
		configInfo["vector_index_path"] = s.config.Storage.VectorIndexPath

		usage, err := storage.MeasureDiskUsage(
			s.config.Storage.DatabasePath,
			s.config.Storage.BleveIndexPath,
			s.config.Storage.VectorIndexPath,
		)
		if err == nil {
			resp["disk_usage"] = usage
			resp["disk_usage_bytes"] = usage.Total
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path    string `json:"path"`
	Rebuild *bool  `json:"rebuild,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
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
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.fail(w, "watch add directory failed", err)
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	rebuild := true
	if req.Rebuild != nil {
		rebuild = *req.Rebuild
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("rebuild", rebuild))
	if err := s.watch.AddDirectory(abs, rebuild); err != nil {
		s.fail(w, "watch add directory failed", err)
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
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
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
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, "watch remove directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch roots back to the config file.
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

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
