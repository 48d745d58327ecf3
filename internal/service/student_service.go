package service

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"studentrecords/internal/model"
	"studentrecords/internal/storage"
)

type SortKey int

const (
	SortNone SortKey = iota
	SortByRoll
	SortByName
	SortByMarksDesc
)

// ParseSortKey accepts "roll", "name", "marks_desc" and "" or "none".
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "roll", "roll_number":
		return SortByRoll, nil
	case "name":
		return SortByName, nil
	case "marks_desc", "marks":
		return SortByMarksDesc, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

type SearchMode int

const (
	SearchByRoll SearchMode = iota
	SearchByName
)

// ParseSearchMode accepts "roll" and "name".
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "roll", "roll_number":
		return SearchByRoll, nil
	case "name", "":
		return SearchByName, nil
	}
	return SearchByName, fmt.Errorf("unknown search mode %q", s)
}

// StudentService owns the in-memory record collection and flushes it to its
// backend after every mutation. It is not safe for concurrent use; hosts with
// several goroutines go through a Guard.
type StudentService struct {
	backend  storage.Backend
	students []model.Student
	logger   *slog.Logger
}

// NewStudentService loads the collection from backend. An absent location
// gives an empty store. If existing data cannot be read the returned service
// is still usable (and empty) but the error is non-nil, since saving would
// overwrite what is there.
func NewStudentService(backend storage.Backend, logger *slog.Logger) (*StudentService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StudentService{
		backend:  backend,
		students: []model.Student{},
		logger:   logger.With(slog.String("location", backend.Location())),
	}
	if err := s.Reload(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *StudentService) Location() string { return s.backend.Location() }

func (s *StudentService) Len() int { return len(s.students) }

// Close releases the backend. It does not persist.
func (s *StudentService) Close() error { return s.backend.Close() }

// Add validates all four fields and appends a new record. On a validation
// failure nothing changes. If only persisting fails the record stays added and
// the returned error wraps ErrIO.
func (s *StudentService) Add(in model.StudentInput) (model.Student, error) {
	roll := strings.TrimSpace(in.RollNumber)
	if err := model.CheckRollNumber(roll); err != nil {
		return model.Student{}, fieldError("roll_number", "%v", err)
	}
	if s.indexFold(roll) >= 0 {
		return model.Student{}, fmt.Errorf("%w: %s", ErrDuplicateRoll, roll)
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return model.Student{}, err
	}
	age, err := ValidateAge(in.Age)
	if err != nil {
		return model.Student{}, err
	}
	marks, err := ValidateMarks(in.Marks)
	if err != nil {
		return model.Student{}, err
	}

	st := model.Student{RollNumber: roll, Name: name, Age: age, Marks: marks}
	s.students = append(s.students, st)
	s.logger.Debug("student added", slog.String("roll_number", roll))
	return st, s.Persist()
}

// FindByRoll returns the record whose roll number matches case-insensitively.
func (s *StudentService) FindByRoll(roll string) (model.Student, error) {
	i := s.indexFold(strings.TrimSpace(roll))
	if i < 0 {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, roll)
	}
	return s.students[i], nil
}

// Search matches roll numbers exactly or names by substring, both ignoring case.
func (s *StudentService) Search(term string, mode SearchMode) []model.Student {
	needle := strings.ToLower(strings.TrimSpace(term))
	found := []model.Student{}
	if needle == "" {
		return found
	}
	for _, st := range s.students {
		switch mode {
		case SearchByRoll:
			if strings.ToLower(st.RollNumber) == needle {
				found = append(found, st)
			}
		case SearchByName:
			if strings.Contains(strings.ToLower(st.Name), needle) {
				found = append(found, st)
			}
		}
	}
	return found
}

// Filter keeps records whose name or roll number contains term, ignoring case,
// and, when grade is set, whose grade equals it. Empty term and grade match all.
func (s *StudentService) Filter(term string, grade model.Grade) []model.Student {
	needle := strings.ToLower(strings.TrimSpace(term))
	found := []model.Student{}
	for _, st := range s.students {
		if needle != "" &&
			!strings.Contains(strings.ToLower(st.Name), needle) &&
			!strings.Contains(strings.ToLower(st.RollNumber), needle) {
			continue
		}
		if grade != "" && st.Grade() != grade {
			continue
		}
		found = append(found, st)
	}
	return found
}

// Update replaces the supplied fields of the record with exactly this roll
// number. Every supplied field is validated before any is applied. An update
// with no fields returns the record unchanged without persisting.
func (s *StudentService) Update(roll string, u model.StudentUpdate) (model.Student, error) {
	i := s.indexExact(strings.TrimSpace(roll))
	if i < 0 {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, roll)
	}
	st := s.students[i]
	if u.Empty() {
		return st, nil
	}

	if u.Name != nil {
		name, err := normalizeName(*u.Name)
		if err != nil {
			return model.Student{}, err
		}
		st.Name = name
	}
	if u.Age != nil {
		age, err := ValidateAge(*u.Age)
		if err != nil {
			return model.Student{}, err
		}
		st.Age = age
	}
	if u.Marks != nil {
		marks, err := ValidateMarks(*u.Marks)
		if err != nil {
			return model.Student{}, err
		}
		st.Marks = marks
	}

	s.students[i] = st
	s.logger.Debug("student updated", slog.String("roll_number", st.RollNumber))
	return st, s.Persist()
}

// Delete removes the record with exactly this roll number and returns it.
func (s *StudentService) Delete(roll string) (model.Student, error) {
	i := s.indexExact(strings.TrimSpace(roll))
	if i < 0 {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, roll)
	}
	removed := s.students[i]
	s.students = slices.Delete(s.students, i, i+1)
	s.logger.Debug("student deleted", slog.String("roll_number", removed.RollNumber))
	return removed, s.Persist()
}

// ListAll returns a sorted copy of every record. Sorting is stable.
func (s *StudentService) ListAll(key SortKey) []model.Student {
	out := slices.Clone(s.students)
	if out == nil {
		out = []model.Student{}
	}
	SortStudents(out, key)
	return out
}

// SortStudents stably sorts students in place by key.
func SortStudents(students []model.Student, key SortKey) {
	switch key {
	case SortByRoll:
		slices.SortStableFunc(students, func(a, b model.Student) int {
			return strings.Compare(a.RollNumber, b.RollNumber)
		})
	case SortByName:
		slices.SortStableFunc(students, func(a, b model.Student) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case SortByMarksDesc:
		slices.SortStableFunc(students, func(a, b model.Student) int {
			switch {
			case a.Marks > b.Marks:
				return -1
			case a.Marks < b.Marks:
				return 1
			}
			return 0
		})
	}
}

// Persist writes the whole collection to the backend. The in-memory state is
// valid whatever the outcome.
func (s *StudentService) Persist() error {
	if err := s.backend.Save(slices.Clone(s.students)); err != nil {
		s.logger.Error("persist failed", slog.Any("error", err))
		return ioError("save "+s.backend.Location(), err)
	}
	s.logger.Debug("persisted", slog.Int("count", len(s.students)))
	return nil
}

// Reload discards the in-memory collection and reads it again. On failure
// the current collection is kept.
func (s *StudentService) Reload() error {
	students, err := s.backend.Load()
	if err != nil {
		s.logger.Error("load failed", slog.Any("error", err))
		return ioError("load "+s.backend.Location(), err)
	}
	if students == nil {
		students = []model.Student{}
	}
	s.students = students
	s.logger.Info("loaded student records", slog.Int("count", len(students)))
	return nil
}

func (s *StudentService) indexFold(roll string) int {
	return slices.IndexFunc(s.students, func(st model.Student) bool {
		return strings.EqualFold(st.RollNumber, roll)
	})
}

func (s *StudentService) indexExact(roll string) int {
	return slices.IndexFunc(s.students, func(st model.Student) bool {
		return st.RollNumber == roll
	})
}
