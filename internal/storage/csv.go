package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"studentrecords/internal/model"
)

// Header is the fixed column order of the persisted format.
var Header = []string{"roll_number", "name", "age", "marks"}

// ReadRows decodes CSV content into raw field values, matching columns by
// header name. Extra columns are ignored. Values are not validated.
func ReadRows(r io.Reader) ([]model.StudentInput, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	for _, col := range Header {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrCorrupt, col)
		}
	}

	var rows []model.StudentInput
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		rows = append(rows, model.StudentInput{
			RollNumber: record[index["roll_number"]],
			Name:       record[index["name"]],
			Age:        record[index["age"]],
			Marks:      record[index["marks"]],
		})
	}
	return rows, nil
}

// Decode turns raw rows into records, enforcing the same field rules the
// store applies on Add. Any invalid row or duplicate roll number is corruption.
func Decode(rows []model.StudentInput) ([]model.Student, error) {
	students := make([]model.Student, 0, len(rows))
	for i, row := range rows {
		age, err := strconv.Atoi(strings.TrimSpace(row.Age))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid age %q", ErrCorrupt, i+2, row.Age)
		}
		marks, err := strconv.ParseFloat(strings.TrimSpace(row.Marks), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid marks %q", ErrCorrupt, i+2, row.Marks)
		}
		students = append(students, model.Student{
			RollNumber: strings.TrimSpace(row.RollNumber),
			Name:       strings.TrimSpace(row.Name),
			Age:        age,
			Marks:      model.NormalizeMarks(marks),
		})
	}

	if err := checkRecords(students, func(i int) string { return fmt.Sprintf("line %d", i+2) }); err != nil {
		return nil, err
	}
	return students, nil
}

// checkRecords applies the field rules and case-insensitive roll number
// uniqueness to loaded records. where names record i in the error.
func checkRecords(students []model.Student, where func(i int) string) error {
	seen := make(map[string]bool, len(students))
	for i, s := range students {
		if err := checkRecord(s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, where(i), err)
		}
		key := strings.ToLower(s.RollNumber)
		if seen[key] {
			return fmt.Errorf("%w: %s: duplicate roll_number %q", ErrCorrupt, where(i), s.RollNumber)
		}
		seen[key] = true
	}
	return nil
}

func checkRecord(s model.Student) error {
	if err := model.CheckRollNumber(s.RollNumber); err != nil {
		return fmt.Errorf("roll_number %q %v", s.RollNumber, err)
	}
	if err := model.CheckName(s.Name); err != nil {
		return fmt.Errorf("name %q %v", s.Name, err)
	}
	if !model.AgeInRange(s.Age) {
		return fmt.Errorf("age %d outside %d-%d", s.Age, model.MinAge, model.MaxAge)
	}
	if !model.MarksInRange(s.Marks) {
		return fmt.Errorf("marks %v outside %v-%v", s.Marks, model.MinMarks, model.MaxMarks)
	}
	return nil
}

// WriteCSV encodes students in the persisted format, header first.
func WriteCSV(w io.Writer, students []model.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range students {
		if err := cw.Write(Record(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record renders one student in Header order.
func Record(s model.Student) []string {
	return []string{s.RollNumber, s.Name, strconv.Itoa(s.Age), FormatMarks(s.Marks)}
}

// FormatMarks renders marks in the shortest form that parses back to the same value.
func FormatMarks(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// IsCorrupt reports whether err stems from undecodable persisted content.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
