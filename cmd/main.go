package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"studentrecords/internal/cli"
	"studentrecords/internal/config"
	"studentrecords/internal/export"
	"studentrecords/internal/handler"
	"studentrecords/internal/service"
	"studentrecords/internal/storage"
)

const usage = `Usage: students [-env FILE] [-force] [command]

Commands:
  (none)                         interactive menu
  serve                          run the HTTP API
  export [-format F] [-o FILE]   write every record as json, yaml, csv or xlsx
  import FILE...                 add records from CSV files
  stats                          print summary statistics

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("students", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "Optional .env file with configuration")
	force := fs.Bool("force", false, "Start even if existing data could not be loaded (it will be overwritten)")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	command, rest := "", fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	// Only commands that write may start over data that failed to load.
	writes := command == "" || command == "serve" || command == "import"
	svc, err := openStore(cfg, logger, writes && *force)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("closing store", slog.Any("error", err))
		}
	}()

	switch command {
	case "":
		return cli.New(svc, stdin, stdout, logger).Run()
	case "serve":
		return serve(cfg, svc, logger)
	case "export":
		return exportCmd(rest, svc, stdout)
	case "import":
		return importCmd(rest, svc, logger, stdout)
	case "stats":
		return statsCmd(svc, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// openStore loads the configured backend. When existing data cannot be read
// it fails unless allowEmpty, in which case it starts with an empty store.
func openStore(cfg *config.Config, logger *slog.Logger, allowEmpty bool) (*service.StudentService, error) {
	backend, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := service.NewStudentService(backend, logger)
	if err != nil {
		if !allowEmpty {
			backend.Close()
			return nil, fmt.Errorf("%w (rerun with -force to start empty and overwrite it)", err)
		}
		logger.Warn("existing data could not be loaded; starting empty, the next save overwrites it",
			slog.String("location", backend.Location()), slog.Any("error", err))
	}
	return svc, nil
}

func serve(cfg *config.Config, svc *service.StudentService, logger *slog.Logger) error {
	guard := service.NewGuard(svc)
	importer := service.NewImportService(guard, logger)
	uploads := handler.NewUploadHandler(importer, cfg.UploadDir, logger)

	router := handler.NewRouter(
		handler.NewStudentHandler(guard, logger),
		uploads,
		handler.NewProgressHandler(importer, logger),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Middleware(router, cfg.CORSOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", slog.String("addr", cfg.HTTPAddr), slog.String("store", svc.Location()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
	uploads.Wait()

	return guard.Do(func(svc *service.StudentService) error { return svc.Persist() })
}

func exportCmd(args []string, svc *service.StudentService, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	formatName := fs.String("format", "json", "Export format: json, yaml, csv or xlsx")
	output := fs.String("o", "", "Output file, - for stdout (default: students_<time>.<ext>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	now := time.Now()
	students := svc.ListAll(service.SortNone)
	if *output == "-" {
		return export.Write(stdout, format, students, now)
	}

	path := *output
	if path == "" {
		path = export.FileName(format, now)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, students, now); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %d student(s) to %s\n", len(students), path)
	return nil
}

func importCmd(files []string, svc *service.StudentService, logger *slog.Logger, stdout io.Writer) error {
	if len(files) == 0 {
		return errors.New("import: no files given")
	}
	importer := service.NewImportService(service.NewGuard(svc), logger)

	var errs []error
	for _, path := range files {
		if err := importer.ProcessCSV(path); err != nil {
			errs = append(errs, fmt.Errorf("import %s: %w", path, err))
		}
		p := importer.GetFileProgress(filepath.Base(path))
		if p == nil {
			continue
		}
		fmt.Fprintf(stdout, "%s: %s, %d imported, %d skipped\n", p.FileName, p.Status, p.Imported, p.Skipped)
		for _, rowErr := range p.RowErrors {
			fmt.Fprintf(stdout, "  %s\n", rowErr)
		}
	}
	return errors.Join(errs...)
}

func statsCmd(svc *service.StudentService, stdout io.Writer) error {
	stats, err := svc.ComputeStatistics()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(stats); err != nil {
		return err
	}
	return enc.Close()
}
