package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/export"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/ingest"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type extractResponse struct {
	RunID        string           `json:"run_id,omitempty"`
	Deduplicated bool             `json:"deduplicated"`
	Pages        int              `json:"pages"`
	Method       string           `json:"method,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Records      extract.Document `json:"records"`
	Summary      *export.Summary  `json:"summary,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !ingest.AllowedExt(filepath.Ext(filename)) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	// Keep the uploaded name so stored runs and download names match it.
	dir, err := os.MkdirTemp("", "inspection-upload-*")
	if err != nil {
		jsonError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, filename)
	n, err := writeLimited(path, file, s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if n > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	force := r.FormValue("force") == "true"
	out, err := s.proc.ProcessFile(r.Context(), path, force)
	if err != nil {
		s.log.Error("extract failed", "filename", filename, "error", err)
		writeAppError(w, err)
		return
	}

	data, sum, err := s.exporter.WriteXLSX(out.Document, export.Options{SheetName: s.cfg.SheetName})
	if err != nil {
		jsonError(w, "failed to build spreadsheet: "+err.Error(), http.StatusInternalServerError)
		return
	}

	runID := ""
	if out.RunID != uuid.Nil {
		runID = out.RunID.String()
		w.Header().Set("X-Run-ID", runID)
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, extractResponse{
			RunID:        runID,
			Deduplicated: out.Deduplicated,
			Pages:        out.Pages,
			Method:       out.Method,
			Warnings:     out.Warnings,
			Records:      out.Document,
			Summary:      &sum,
		})
		return
	}
	writeXLSX(w, export.DefaultFilename(filename), data)
}

type extractTextRequest struct {
	Pages []string `json:"pages"`
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	var req extractTextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := s.proc.ExtractTexts(req.Pages)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": doc})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}
	run, doc, err := s.proc.LoadRun(r.Context(), runID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "records": doc})
}

func (s *Server) handleRunXLSX(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}
	data, name, _, err := s.exporter.ExportRunXLSX(r.Context(), runID, export.Options{SheetName: s.cfg.SheetName})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeXLSX(w, name, data)
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		jsonError(w, "runID must be a UUID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeLimited(path string, r io.Reader, limit int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="export.xlsx"; filename*=UTF-8''%s`, url.PathEscape(filename)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), common.HTTPStatus(err))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
