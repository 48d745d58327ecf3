package service

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studentrecords/internal/model"
)

// ValidateName reports whether the trimmed name has at least two characters
// and no control characters.
func ValidateName(candidate string) bool {
	return model.CheckName(strings.TrimSpace(candidate)) == nil
}

// ValidateAge parses candidate as an integer age in [1, 150].
func ValidateAge(candidate string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(candidate))
	if err != nil {
		return 0, fieldError("age", "%q is not a whole number", candidate)
	}
	if !model.AgeInRange(age) {
		return 0, fieldError("age", "%d is outside %d-%d", age, model.MinAge, model.MaxAge)
	}
	return age, nil
}

// ValidateMarks parses candidate as decimal marks in [0, 100].
func ValidateMarks(candidate string) (float64, error) {
	marks, err := strconv.ParseFloat(strings.TrimSpace(candidate), 64)
	if err != nil {
		return 0, fieldError("marks", "%q is not a number", candidate)
	}
	if !model.MarksInRange(marks) {
		return 0, fieldError("marks", "%v is outside %v-%v", marks, model.MinMarks, model.MaxMarks)
	}
	return model.NormalizeMarks(marks), nil
}

// TitleCase capitalises the first letter of every word and lowers the rest.
// Apostrophes and digits do not start a new word, so "o'brien" becomes "O'brien".
func TitleCase(name string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}

func normalizeName(candidate string) (string, error) {
	if err := model.CheckName(strings.TrimSpace(candidate)); err != nil {
		return "", fieldError("name", "%v", err)
	}
	return TitleCase(candidate), nil
}

// ValidateRollNumber reports whether candidate is a well-formed roll number
// not used by any existing record, compared case-insensitively.
func (s *StudentService) ValidateRollNumber(candidate string) bool {
	roll := strings.TrimSpace(candidate)
	return model.CheckRollNumber(roll) == nil && s.indexFold(roll) < 0
}
