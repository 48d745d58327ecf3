package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// maxUploadBytes bounds a multipart upload held in memory and temp files.
const maxUploadBytes = 100 << 20 // 100MB

// Importer runs a CSV import for a file already on disk.
type Importer interface {
	ProcessCSV(filePath string) error
}

type UploadHandler struct {
	importer  Importer
	uploadDir string
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewUploadHandler(importer Importer, uploadDir string, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{importer: importer, uploadDir: uploadDir, logger: logger}
}

// UploadCSV saves every file in the "files" form field and imports each one
// in the background. Progress is available from the progress endpoints.
func (h *UploadHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("creating upload directory", slog.String("dir", h.uploadDir), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create uploads directory"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "File too large or bad request"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No files uploaded"})
		return
	}

	fileNames := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		savePath := filepath.Join(h.uploadDir, name)
		if err := saveUpload(fh, savePath); err != nil {
			h.logger.Error("saving upload", slog.String("file", name), slog.Any("error", err))
			continue
		}
		fileNames = append(fileNames, name)

		h.wg.Add(1)
		go func(filePath string) {
			defer h.wg.Done()
			if err := h.importer.ProcessCSV(filePath); err != nil {
				h.logger.Error("processing upload", slog.String("file", filePath), slog.Any("error", err))
			}
		}(savePath)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Files uploaded successfully and processing started",
		"files":   fileNames,
	})
}

// Wait blocks until every import started by UploadCSV has finished.
func (h *UploadHandler) Wait() {
	h.wg.Wait()
}

func saveUpload(fh *multipart.FileHeader, savePath string) error {
	file, err := fh.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	outFile, err := os.Create(savePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, file); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}
