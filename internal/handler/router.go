package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter registers every route. uploads and progress may be nil, in which
// case the import endpoints are left out.
func NewRouter(students *StudentHandler, uploads *UploadHandler, progress *ProgressHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/students", students.ListStudents).Methods(http.MethodGet)
	r.HandleFunc("/students", students.CreateStudent).Methods(http.MethodPost)
	r.HandleFunc("/students/{roll}", students.GetStudent).Methods(http.MethodGet)
	r.HandleFunc("/students/{roll}", students.UpdateStudent).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/students/{roll}", students.DeleteStudent).Methods(http.MethodDelete)
	r.HandleFunc("/statistics", students.GetStatistics).Methods(http.MethodGet)
	r.HandleFunc("/export", students.ExportStudents).Methods(http.MethodGet)
	r.HandleFunc("/reload", students.Reload).Methods(http.MethodPost)

	if uploads != nil {
		r.HandleFunc("/upload", uploads.UploadCSV).Methods(http.MethodPost)
	}
	if progress != nil {
		r.HandleFunc("/progress", progress.GetAllProgress).Methods(http.MethodGet)
		r.HandleFunc("/progress/file", progress.GetFileProgress).Methods(http.MethodGet)
		r.HandleFunc("/progress/stream", progress.SSEProgress).Methods(http.MethodGet)
	}
	return r
}

// Middleware wraps h with panic recovery, request logging and CORS for origins.
func Middleware(h http.Handler, origins []string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, requestLogger(logger))
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(h)
}

// requestLogger sends one structured line per request to logger instead of
// the handler's writer.
func requestLogger(logger *slog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info("http request",
			slog.String("method", p.Request.Method),
			slog.String("path", p.URL.Path),
			slog.Int("status", p.StatusCode),
			slog.Int("size", p.Size),
			slog.Duration("took", time.Since(p.TimeStamp)),
		)
	}
}
