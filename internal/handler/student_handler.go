package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"studentrecords/internal/export"
	"studentrecords/internal/model"
	"studentrecords/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type StudentHandler struct {
	guard  *service.Guard
	logger *slog.Logger
	now    func() time.Time
}

func NewStudentHandler(guard *service.Guard, logger *slog.Logger) *StudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentHandler{guard: guard, logger: logger, now: time.Now}
}

// fieldValue takes a JSON string or number and keeps its text, so the store
// validates what the client sent rather than what the decoder made of it.
type fieldValue string

func (v *fieldValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = fieldValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or number, got %s", b)
	}
	*v = fieldValue(n.String())
	return nil
}

type createRequest struct {
	RollNumber fieldValue `json:"roll_number"`
	Name       fieldValue `json:"name"`
	Age        fieldValue `json:"age"`
	Marks      fieldValue `json:"marks"`
}

type updateRequest struct {
	Name  *fieldValue `json:"name"`
	Age   *fieldValue `json:"age"`
	Marks *fieldValue `json:"marks"`
}

func (u updateRequest) toUpdate() model.StudentUpdate {
	str := func(v *fieldValue) *string {
		if v == nil {
			return nil
		}
		s := string(*v)
		return &s
	}
	return model.StudentUpdate{Name: str(u.Name), Age: str(u.Age), Marks: str(u.Marks)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *StudentHandler) badRequest(w http.ResponseWriter, err error) {
	h.logger.Debug("bad request body", slog.Any("error", err))
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
}

// ListStudents serves the whole collection, a search or a filter.
// With mode set, q is searched by roll number or name; otherwise q and grade
// filter by substring and grade. sort applies to every result.
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	key, err := service.ParseSortKey(query.Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var grade model.Grade
	if g := query.Get("grade"); g != "" {
		if grade, err = model.ParseGrade(g); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	term := query.Get("q")
	modeParam := query.Get("mode")
	var mode service.SearchMode
	if modeParam != "" {
		if mode, err = service.ParseSearchMode(modeParam); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	var students []model.Student
	_ = h.guard.Do(func(svc *service.StudentService) error {
		switch {
		case modeParam != "":
			students = svc.Search(term, mode)
		case term != "" || grade != "":
			students = svc.Filter(term, grade)
		default:
			students = svc.ListAll(service.SortNone)
		}
		return nil
	})
	service.SortStudents(students, key)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  newStudentList(students),
		"total": len(students),
	})
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]

	var st model.Student
	err := h.guard.Do(func(svc *service.StudentService) (err error) {
		st, err = svc.FindByRoll(roll)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newStudentResponse(st))
}

func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	in := model.StudentInput{
		RollNumber: string(req.RollNumber),
		Name:       string(req.Name),
		Age:        string(req.Age),
		Marks:      string(req.Marks),
	}

	var st model.Student
	err := h.guard.Do(func(svc *service.StudentService) (err error) {
		st, err = svc.Add(in)
		return err
	})
	if err != nil && !errors.Is(err, service.ErrIO) {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("student added", slog.String("roll_number", st.RollNumber))
	writeMutation(w, h.logger, http.StatusCreated, st, err)
}

func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]

	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	var st model.Student
	err := h.guard.Do(func(svc *service.StudentService) (err error) {
		st, err = svc.Update(roll, req.toUpdate())
		return err
	})
	if err != nil && !errors.Is(err, service.ErrIO) {
		writeError(w, h.logger, err)
		return
	}
	writeMutation(w, h.logger, http.StatusOK, st, err)
}

func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]

	var st model.Student
	err := h.guard.Do(func(svc *service.StudentService) (err error) {
		st, err = svc.Delete(roll)
		return err
	})
	if err != nil && !errors.Is(err, service.ErrIO) {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("student deleted", slog.String("roll_number", st.RollNumber))
	writeMutation(w, h.logger, http.StatusOK, st, err)
}

type statisticsResponse struct {
	service.Statistics
	GradePercent map[model.Grade]float64 `json:"grade_percent"`
}

func (h *StudentHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	var stats service.Statistics
	err := h.guard.Do(func(svc *service.StudentService) (err error) {
		stats, err = svc.ComputeStatistics()
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := statisticsResponse{
		Statistics:   stats,
		GradePercent: make(map[model.Grade]float64, len(model.Grades())),
	}
	for _, g := range model.Grades() {
		resp.GradePercent[g] = stats.GradePercent(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportStudents downloads every record in the format named by ?format=
// (json when absent).
func (h *StudentHandler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var students []model.Student
	_ = h.guard.Do(func(svc *service.StudentService) error {
		students = svc.ListAll(service.SortNone)
		return nil
	})

	now := h.now()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, students, now); err != nil {
		writeError(w, h.logger, fmt.Errorf("export %s: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(format, now)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("writing export", slog.Any("error", err))
	}
}

// Reload discards unsaved in-memory state and re-reads the backend.
func (h *StudentHandler) Reload(w http.ResponseWriter, r *http.Request) {
	var count int
	err := h.guard.Do(func(svc *service.StudentService) error {
		if err := svc.Reload(); err != nil {
			return err
		}
		count = svc.Len()
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count})
}
