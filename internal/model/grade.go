package model

import (
	"fmt"
	"strings"
)

type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// gradeThresholds is evaluated highest first; each bound is inclusive.
var gradeThresholds = []struct {
	min   float64
	grade Grade
}{
	{90, GradeAPlus},
	{80, GradeA},
	{70, GradeBPlus},
	{60, GradeB},
	{50, GradeC},
	{40, GradeD},
}

// Grades lists every grade in table order, best first.
func Grades() []Grade {
	return []Grade{GradeAPlus, GradeA, GradeBPlus, GradeB, GradeC, GradeD, GradeF}
}

// GradeFor maps marks to a grade.
func GradeFor(marks float64) Grade {
	for _, t := range gradeThresholds {
		if marks >= t.min {
			return t.grade
		}
	}
	return GradeF
}

// ParseGrade accepts any grade label, case-insensitively.
func ParseGrade(s string) (Grade, error) {
	for _, g := range Grades() {
		if strings.EqualFold(string(g), strings.TrimSpace(s)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grade %q", s)
}
