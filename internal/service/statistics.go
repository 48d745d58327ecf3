package service

import (
	"slices"
	"strings"

	"studentrecords/internal/model"
)

// MarksBuckets is the number of fixed-width buckets in Statistics.MarksHistogram.
const MarksBuckets = 10

// topCount bounds Statistics.TopByRoll.
const topCount = 10

type AgeMarks struct {
	Age   int     `json:"age" yaml:"age"`
	Marks float64 `json:"marks" yaml:"marks"`
}

type Statistics struct {
	Count          int                 `json:"count" yaml:"count"`
	MeanMarks      float64             `json:"mean_marks" yaml:"mean_marks"`
	MaxMarks       float64             `json:"max_marks" yaml:"max_marks"`
	MinMarks       float64             `json:"min_marks" yaml:"min_marks"`
	MeanAge        float64             `json:"mean_age" yaml:"mean_age"`
	GradeHistogram map[model.Grade]int `json:"grade_histogram" yaml:"grade_histogram"`
	// MarksHistogram[i] counts marks in [10i, 10i+10); 100 falls in the last bucket.
	MarksHistogram [MarksBuckets]int `json:"marks_histogram" yaml:"marks_histogram"`
	AgeMarks       []AgeMarks        `json:"age_marks" yaml:"age_marks"`
	// TopByRoll holds the first records ordered by roll number.
	TopByRoll []model.Student `json:"top_by_roll" yaml:"top_by_roll"`
}

// GradePercent returns the share of records holding grade, in percent.
func (st Statistics) GradePercent(g model.Grade) float64 {
	if st.Count == 0 {
		return 0
	}
	return float64(st.GradeHistogram[g]) / float64(st.Count) * 100
}

// ComputeStatistics aggregates marks over every record in one pass.
// It fails with ErrEmptyStore when there are no records.
func (s *StudentService) ComputeStatistics() (Statistics, error) {
	if len(s.students) == 0 {
		return Statistics{}, ErrEmptyStore
	}

	st := Statistics{
		Count:          len(s.students),
		MaxMarks:       s.students[0].Marks,
		MinMarks:       s.students[0].Marks,
		GradeHistogram: make(map[model.Grade]int, len(model.Grades())),
		AgeMarks:       make([]AgeMarks, 0, len(s.students)),
	}
	for _, g := range model.Grades() {
		st.GradeHistogram[g] = 0
	}

	var sumMarks, sumAge float64
	for _, rec := range s.students {
		sumMarks += rec.Marks
		sumAge += float64(rec.Age)
		st.MaxMarks = max(st.MaxMarks, rec.Marks)
		st.MinMarks = min(st.MinMarks, rec.Marks)
		st.GradeHistogram[rec.Grade()]++
		st.MarksHistogram[marksBucket(rec.Marks)]++
		st.AgeMarks = append(st.AgeMarks, AgeMarks{Age: rec.Age, Marks: rec.Marks})
	}
	st.MeanMarks = sumMarks / float64(st.Count)
	st.MeanAge = sumAge / float64(st.Count)

	byRoll := slices.Clone(s.students)
	slices.SortStableFunc(byRoll, func(a, b model.Student) int {
		return strings.Compare(a.RollNumber, b.RollNumber)
	})
	st.TopByRoll = byRoll[:min(topCount, len(byRoll))]
	return st, nil
}

func marksBucket(marks float64) int {
	b := int(marks / (model.MaxMarks / MarksBuckets))
	return min(max(b, 0), MarksBuckets-1)
}
