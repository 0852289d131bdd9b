// Package server exposes the conversion pipeline over HTTP.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/config"
	"github.com/sells-group/tallyconv/internal/export"
	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/pipeline"
)

// Server handles HTTP requests for the conversion pipeline.
type Server struct {
	svc *pipeline.Service
	cfg config.ServerConfig
}

// New creates a Server.
func New(svc *pipeline.Service, cfg config.ServerConfig) *Server {
	return &Server{svc: svc, cfg: cfg}
}

// Router builds the chi router with the middleware stack and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimiter(s.cfg.RatePerSecond, s.cfg.RateBurst))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/upload", s.handleUpload)
	r.Post("/convert", s.handleConvertUpload)
	r.Post("/convert/{fileID}", s.handleConvert)
	r.Get("/download/{fileID}/{format}", s.handleDownload)
	r.Post("/api/save-edits", s.handleSaveEdits)
	r.Get("/api/edit-history/{fileID}", s.handleEditHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics())
}

// readUpload pulls the uploaded file out of the multipart form, bounded by
// the configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeClientError(w, http.StatusBadRequest, "missing file field")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeClientError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return "", nil, false
	}
	return header.Filename, data, true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	doc, err := s.svc.Upload(r.Context(), name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"fileId":   doc.ID,
		"name":     doc.Name,
		"modality": doc.Modality,
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Convert(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConvertUpload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	result, err := s.svc.ConvertUpload(r.Context(), name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := s.svc.Download(r.Context(), fileID, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.MediaType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileID+"."+format.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// saveEditsRequest is the correction payload: the document, the edit history
// to apply, and the client's before and after tables. The corrected table is
// recomputed server-side from the stored base plus the edit history; the
// submitted tables are only checked by fingerprint.
type saveEditsRequest struct {
	FileID       string             `json:"fileId"`
	OriginalData *model.TableData   `json:"originalData"`
	ModifiedData *model.TableData   `json:"modifiedData"`
	EditHistory  []model.EditRecord `json:"editHistory"`
}

func (s *Server) handleSaveEdits(w http.ResponseWriter, r *http.Request) {
	var req saveEditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClientError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileID == "" {
		writeClientError(w, http.StatusBadRequest, "fileId is required")
		return
	}

	result, err := s.svc.SaveCorrection(r.Context(), req.FileID, pipeline.Correction{
		Edits:    req.EditHistory,
		Original: req.OriginalData,
		Modified: req.ModifiedData,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEditHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.AuditTrail(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// requestLogger logs one line per request with the zap global.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
