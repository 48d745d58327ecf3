// Package export renders record snapshots into one-way output documents.
// Nothing written here is ever read back by the store.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"studentrecords/internal/model"
	"studentrecords/internal/storage"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds the records in XLSX exports.
const SheetName = "Students"

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatCSV, FormatXLSX}
}

// ParseFormat accepts a format name or a file extension such as ".json".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if f == "yml" {
		f = FormatYAML
	}
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Extension is the file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

type Row struct {
	RollNumber string      `json:"roll_number" yaml:"roll_number"`
	Name       string      `json:"name" yaml:"name"`
	Age        int         `json:"age" yaml:"age"`
	Marks      float64     `json:"marks" yaml:"marks"`
	Grade      model.Grade `json:"grade" yaml:"grade"`
}

// Document is the structured export: the records plus their derived grade.
type Document struct {
	ExportID      string    `json:"export_id" yaml:"export_id"`
	ExportDate    time.Time `json:"export_date" yaml:"export_date"`
	TotalStudents int       `json:"total_students" yaml:"total_students"`
	Students      []Row     `json:"students" yaml:"students"`
}

// NewDocument builds a document stamped with now.
func NewDocument(students []model.Student, now time.Time) Document {
	rows := make([]Row, 0, len(students))
	for _, s := range students {
		rows = append(rows, Row{
			RollNumber: s.RollNumber,
			Name:       s.Name,
			Age:        s.Age,
			Marks:      s.Marks,
			Grade:      s.Grade(),
		})
	}
	return Document{
		ExportID:      uuid.NewString(),
		ExportDate:    now.UTC().Truncate(time.Second),
		TotalStudents: len(students),
		Students:      rows,
	}
}

// Write renders students in format f to w.
func Write(w io.Writer, f Format, students []model.Student, now time.Time) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(students, now))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(students, now)); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, students)
	case FormatXLSX:
		return writeXLSX(w, students)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func header() []string {
	return append(append([]string(nil), storage.Header...), "grade")
}

func writeCSV(w io.Writer, students []model.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header()); err != nil {
		return err
	}
	for _, s := range students {
		if err := cw.Write(append(storage.Record(s), string(s.Grade()))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, students []model.Student) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	cols := header()
	if err := f.SetSheetRow(SheetName, "A1", &cols); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return err
	}

	for i, s := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{s.RollNumber, s.Name, s.Age, s.Marks, string(s.Grade())}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// FileName suggests a download name such as students_20250101T120000Z.json.
func FileName(f Format, now time.Time) string {
	return "students_" + now.UTC().Format("20060102T150405Z") + f.Extension()
}
