// Package storage holds the persistence backends behind the record store.
package storage

import (
	"errors"
	"fmt"

	"studentrecords/internal/config"
	"studentrecords/internal/database"
	"studentrecords/internal/model"
)

// ErrCorrupt marks persisted content that exists but cannot be decoded into valid records.
var ErrCorrupt = errors.New("corrupt student data")

// Backend loads and saves the complete, ordered record collection.
type Backend interface {
	// Load returns every persisted record in stored order.
	// An absent location yields an empty slice and no error.
	Load() ([]model.Student, error)

	// Save replaces all persisted records with students. It either fully
	// succeeds or leaves the previous content in place.
	Save(students []model.Student) error

	// Location describes where the records live, for messages.
	Location() string

	Close() error
}

// New creates a Backend based on cfg.Backend.
//
// Supported backends:
//
//	"csv"      - flat CSV file at cfg.DataFile (default)
//	"sqlite"   - students table in the SQLite database at cfg.SQLitePath
//	"postgres" - students table in the database described by the DB_* settings
//	"memory"   - in-memory (ephemeral, for testing)
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case "csv", "":
		return NewCSVFile(cfg.DataFile), nil
	case "sqlite", "postgres":
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewGormStore(db, cfg.Backend+":"+cfg.Location())
		if err != nil {
			database.Close(db)
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: csv, sqlite, postgres, memory)", cfg.Backend)
	}
}
