package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/i-gras/apiserver/internal/storage"
)

const (
	maxMaterialBytes   = 25 << 20
	maxMultipartMemory = 32 << 20

	formFieldFile     = "file"
	formFieldKind     = "kind"
	formFieldSubject  = "subject"
	formFieldExamType = "exam_type"

	materialsPrefix = "materials"
)

// materialKinds are the accepted upload categories: answer keys set by
// staff and bundled student answers.
var materialKinds = map[string]bool{
	"answer-key":      true,
	"student-answers": true,
}

// MaterialsHandler provides admin endpoints for exam material files
// backed by object storage.
type MaterialsHandler struct {
	storage *storage.Storage
}

// NewMaterialsHandler constructs a handler over the given storage.
func NewMaterialsHandler(st *storage.Storage) *MaterialsHandler {
	return &MaterialsHandler{storage: st}
}

// MaterialsRouter registers material routes on the given router.
// All routes are admin only.
func MaterialsRouter(r chi.Router, handler *MaterialsHandler, requireSession, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireSession, requireAdmin)
	r.Post("/", handler.Upload)
	r.Get("/{kind}/{subject}/{examType}/{filename}", handler.Download)
	r.Delete("/{kind}/{subject}/{examType}/{filename}", handler.Delete)
}

// Upload stores a material file under a key derived from its kind,
// subject, exam type, and filename.
func (h *MaterialsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	kind := strings.TrimSpace(r.FormValue(formFieldKind))
	if !materialKinds[kind] {
		writeError(w, http.StatusBadRequest, "kind must be answer-key or student-answers")
		return
	}

	subject, err := cleanSegment(r.FormValue(formFieldSubject))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject")
		return
	}
	examType, err := cleanSegment(r.FormValue(formFieldExamType))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exam type")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "material file is required")
		return
	}
	defer file.Close()

	filename, err := cleanSegment(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	data, err := readFileLimited(file, maxMaterialBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := materialKey(kind, subject, examType, filename)
	if err := h.storage.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		slog.Error("failed to store material", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to store material")
		return
	}

	writeJSON(w, http.StatusCreated, MaterialResponse{Key: key})
}

// Download streams a stored material file back to the caller.
func (h *MaterialsHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, err := materialKeyFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	object, err := h.storage.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	defer object.Close()

	// Read fully before writing so a missing object still maps to 404;
	// some backends only surface absence on first read.
	data, err := io.ReadAll(io.LimitReader(object, maxMaterialBytes))
	if err != nil {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Delete removes a stored material file.
func (h *MaterialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := materialKeyFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.storage.Delete(r.Context(), key); err != nil {
		slog.Error("failed to delete material", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to delete material")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MaterialResponse reports the storage key of an uploaded material.
type MaterialResponse struct {
	Key string `json:"key"`
}

func materialKeyFromRequest(r *http.Request) (string, error) {
	kind := chi.URLParam(r, "kind")
	if !materialKinds[kind] {
		return "", errors.New("invalid material kind")
	}
	subject, err := cleanSegment(chi.URLParam(r, "subject"))
	if err != nil {
		return "", errors.New("invalid subject")
	}
	examType, err := cleanSegment(chi.URLParam(r, "examType"))
	if err != nil {
		return "", errors.New("invalid exam type")
	}
	filename, err := cleanSegment(chi.URLParam(r, "filename"))
	if err != nil {
		return "", errors.New("invalid filename")
	}
	return materialKey(kind, subject, examType, filename), nil
}

func materialKey(kind, subject, examType, filename string) string {
	return path.Join(materialsPrefix, kind, subject, examType, filename)
}

// cleanSegment rejects empty or path-traversing key segments.
func cleanSegment(raw string) (string, error) {
	segment := strings.TrimSpace(raw)
	if segment == "" || segment == "." || segment == ".." {
		return "", errors.New("invalid segment")
	}
	if strings.ContainsAny(segment, "/\\") {
		return "", errors.New("invalid segment")
	}
	return segment, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
