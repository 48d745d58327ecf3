package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Student is a single persisted record. Grade is derived from Marks and never stored.
type Student struct {
	RollNumber string  `json:"roll_number" yaml:"roll_number"`
	Name       string  `json:"name" yaml:"name"`
	Age        int     `json:"age" yaml:"age"`
	Marks      float64 `json:"marks" yaml:"marks"`
}

// Grade returns the grade for the student's current marks.
func (s Student) Grade() Grade {
	return GradeFor(s.Marks)
}

// StudentInput carries raw, unvalidated field values as a front-end collected them.
type StudentInput struct {
	RollNumber string
	Name       string
	Age        string
	Marks      string
}

// StudentUpdate lists the fields to replace. A nil field is left unchanged.
type StudentUpdate struct {
	Name  *string
	Age   *string
	Marks *string
}

// Empty reports whether the update carries no field at all.
func (u StudentUpdate) Empty() bool {
	return u.Name == nil && u.Age == nil && u.Marks == nil
}

const (
	MinAge   = 1
	MaxAge   = 150
	MinMarks = 0.0
	MaxMarks = 100.0
	// MinNameLength counts runes after trimming.
	MinNameLength = 2
)

// AgeInRange reports whether age is within [MinAge, MaxAge].
func AgeInRange(age int) bool {
	return age >= MinAge && age <= MaxAge
}

// MarksInRange reports whether marks is a finite value within [MinMarks, MaxMarks].
func MarksInRange(marks float64) bool {
	return !math.IsNaN(marks) && marks >= MinMarks && marks <= MaxMarks
}

// CheckRollNumber reports why a trimmed roll number cannot identify a record.
// A roll number is a path segment in the HTTP API, so '/' is refused.
func CheckRollNumber(roll string) error {
	switch {
	case roll == "":
		return errors.New("must not be empty")
	case strings.ContainsRune(roll, '/'):
		return errors.New("must not contain '/'")
	case hasControl(roll):
		return errors.New("must not contain control characters")
	}
	return nil
}

// CheckName reports why a trimmed name cannot be stored.
func CheckName(name string) error {
	if utf8.RuneCountInString(name) < MinNameLength {
		return fmt.Errorf("must be at least %d characters", MinNameLength)
	}
	if hasControl(name) {
		return errors.New("must not contain control characters")
	}
	return nil
}

// NormalizeMarks maps a negative zero to zero.
func NormalizeMarks(marks float64) float64 {
	if marks == 0 {
		return 0
	}
	return marks
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
