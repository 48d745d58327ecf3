package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentrecords/internal/config"
)

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "students.db")}

	db, err := Open(cfg)
	require.NoError(t, err)
	defer Close(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpenRejectsNonSQLBackend(t *testing.T) {
	_, err := Open(&config.Config{Backend: "csv"})
	assert.Error(t, err)
}
