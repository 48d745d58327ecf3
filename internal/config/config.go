package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Backend    string
	DataFile   string
	SQLitePath string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	HTTPAddr    string
	CORSOrigins []string
	UploadDir   string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
// Missing .env files are ignored; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Backend:    env("STORE_BACKEND", "csv"),
		DataFile:   env("DATA_FILE", "students.csv"),
		SQLitePath: env("SQLITE_PATH", "students.db"),

		DBHost:     env("DB_HOST", "localhost"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     env("DB_NAME", "studentdb"),
		DBPort:     env("DB_PORT", "5432"),
		DBSSLMode:  env("DB_SSLMODE", "disable"),

		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		CORSOrigins: splitList(env("CORS_ORIGINS", "http://localhost:3000")),
		UploadDir:   env("UPLOAD_DIR", "uploads"),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case "csv", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q (must be csv, sqlite, postgres or memory)", c.Backend)
	}
	if c.Backend == "csv" && c.DataFile == "" {
		return fmt.Errorf("config: csv backend requires DATA_FILE")
	}
	if c.Backend == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("config: sqlite backend requires SQLITE_PATH")
	}
	if c.Backend == "postgres" && c.DBUser == "" {
		return fmt.Errorf("config: postgres backend requires DB_USER")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q (must be text or json)", c.LogFormat)
	}
	return nil
}

// PostgresDSN builds the connection string from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
		" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=" + c.DBSSLMode
}

// Location describes where the configured backend keeps its data.
func (c *Config) Location() string {
	switch c.Backend {
	case "csv":
		return c.DataFile
	case "sqlite":
		return c.SQLitePath
	case "postgres":
		return c.DBHost + ":" + c.DBPort + "/" + c.DBName
	default:
		return "memory"
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
