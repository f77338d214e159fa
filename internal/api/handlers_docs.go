package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pageturn/ingest/internal/document"
	"github.com/pageturn/ingest/internal/pipeline"
)

// handleUpload accepts a multipart file, stores it in the data directory,
// registers a pending document, and starts processing in the background
// unless process=false.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

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
	ext := strings.ToLower(filepath.Ext(filename))
	if _, err := document.TypeForExt(ext); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		jsonError(w, "failed to prepare data dir", http.StatusInternalServerError)
		return
	}
	destPath := filepath.Join(s.cfg.DataDir, pipeline.NewID()+ext)
	dest, err := os.Create(destPath)
	if err != nil {
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(dest, io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	dest.Close()
	if err != nil {
		os.Remove(destPath)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	if size > s.cfg.MaxUploadBytes {
		os.Remove(destPath)
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	doc, err := s.pipeline.Add(r.Context(), filename, destPath, size)
	if err != nil {
		os.Remove(destPath)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.FormValue("process") != "false" {
		s.startProcessing(doc.ID, false)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document":     doc,
		"progress_url": fmt.Sprintf("/api/documents/%s/progress", doc.ID),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []document.Document{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.pipeline.Get(r.Context(), docID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.pipeline.Delete(r.Context(), docID); err != nil {
		writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProcess starts (or with resume=true restarts) processing in the
// background and returns immediately.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if _, err := s.pipeline.Get(r.Context(), docID); err != nil {
		writePipelineError(w, err)
		return
	}
	resume := r.URL.Query().Get("resume") == "true"
	s.startProcessing(docID, resume)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document_id":  docID,
		"progress_url": fmt.Sprintf("/api/documents/%s/progress", docID),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	s.pipeline.Pause(r.Context(), docID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	chunks, err := s.pipeline.Chunks(r.Context(), docID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chunks == nil {
		chunks = []document.Chunk{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"chunks": chunks})
}

// handleProgress streams progress updates for one document as
// server-sent events until the run reaches a terminal status or the
// client goes away.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The broadcaster delivers in-line from the run goroutine; hand
	// updates to the response writer through a small buffer so a slow
	// client never stalls the pipeline.
	events := make(chan document.Update, 16)
	unsub := s.pipeline.SubscribeProgress(docID, func(u document.Update) {
		select {
		case events <- u:
		default:
		}
	})
	defer unsub()
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-events:
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if u.Status.Terminal() {
				return
			}
		}
	}
}

// startProcessing runs the pipeline detached from the request context so
// a finished upload response does not cancel the run.
func (s *Server) startProcessing(docID string, resume bool) {
	go func() {
		err := s.pipeline.Process(context.Background(), docID, resume)
		if err != nil && !errors.Is(err, pipeline.ErrAlreadyRunning) {
			s.log.Error("processing failed", "document_id", docID, "error", err)
		}
	}()
}

func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		jsonError(w, "document not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrPermissionDenied):
		jsonError(w, "storage permission denied", http.StatusForbidden)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
