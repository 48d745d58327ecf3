package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"

	"studentrecords/internal/service"
)

// ProgressService reports import progress.
type ProgressService interface {
	GetFileProgress(fileName string) *service.ProgressInfo
	GetAllFileProgress() []*service.ProgressInfo
	RegisterProgressListener(ch chan *service.ProgressInfo)
	UnregisterProgressListener(ch chan *service.ProgressInfo)
}

type ProgressHandler struct {
	progress ProgressService
	logger   *slog.Logger
}

func NewProgressHandler(progress ProgressService, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{progress: progress, logger: logger}
}

// GetFileProgress returns the progress for a specific file
func (h *ProgressHandler) GetFileProgress(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fileName parameter is required"})
		return
	}

	progress := h.progress.GetFileProgress(filepath.Base(fileName))
	if progress == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found or not being processed"})
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetAllProgress returns the progress for every file imported so far
func (h *ProgressHandler) GetAllProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.progress.GetAllFileProgress())
}

// SSEProgress streams progress updates as Server-Sent Events until the
// client goes away.
func (h *ProgressHandler) SSEProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	progressChan := make(chan *service.ProgressInfo, 16)
	h.progress.RegisterProgressListener(progressChan)
	defer h.progress.UnregisterProgressListener(progressChan)

	for {
		select {
		case progress := <-progressChan:
			data, err := json.Marshal(progress)
			if err != nil {
				h.logger.Error("marshaling progress", slog.Any("error", err))
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				h.logger.Debug("writing SSE data", slog.Any("error", err))
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debug("progress client disconnected")
			return
		}
	}
}
