package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"studentrecords/internal/model"
)

// CSVFile keeps the whole collection in one CSV file.
// Saves go to a temporary file in the same directory which is then renamed
// over the target, so readers never observe a half-written file.
type CSVFile struct {
	path string
}

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (f *CSVFile) Location() string { return f.path }

func (f *CSVFile) Close() error { return nil }

func (f *CSVFile) Load() ([]model.Student, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Student{}, nil
		}
		return nil, err
	}
	defer file.Close()

	rows, err := ReadRows(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	students, err := Decode(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return students, nil
}

func (f *CSVFile) Save(students []model.Student) (err error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, students); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
