package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"studentrecords/internal/model"
	"studentrecords/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// studentResponse is a record as served over HTTP, with its derived grade.
type studentResponse struct {
	model.Student
	Grade model.Grade `json:"grade"`
}

// mutationResponse reports a change. Persisted is false when the change took
// effect in memory but could not be saved.
type mutationResponse struct {
	Student   studentResponse `json:"student"`
	Persisted bool            `json:"persisted"`
	Warning   string          `json:"warning,omitempty"`
}

func newStudentResponse(s model.Student) studentResponse {
	return studentResponse{Student: s, Grade: s.Grade()}
}

func newStudentList(students []model.Student) []studentResponse {
	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, newStudentResponse(s))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", slog.Any("error", err))
	}
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateRoll):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrEmptyStore):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var fe *service.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
	} else {
		logger.Debug("request rejected", slog.Any("error", err))
	}
	writeJSON(w, status, resp)
}

// writeMutation answers a successful change. err is nil or a persistence
// failure that happened after the change was applied.
func writeMutation(w http.ResponseWriter, logger *slog.Logger, status int, s model.Student, err error) {
	resp := mutationResponse{Student: newStudentResponse(s), Persisted: err == nil}
	if err != nil {
		logger.Warn("change not persisted", slog.String("roll_number", s.RollNumber), slog.Any("error", err))
		resp.Warning = err.Error()
	}
	writeJSON(w, status, resp)
}
