package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"studentrecords/internal/storage"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// progressEvery is how many rows pass between progress broadcasts.
const progressEvery = 100

type ProgressInfo struct {
	FileName     string
	TotalRecords int
	Processed    int
	Imported     int
	Skipped      int
	Status       string // "processing", "completed", "error"
	Error        string
	RowErrors    []string
	StartTime    time.Time
	EndTime      time.Time
}

// ImportService bulk-loads CSV files into the store through Add, so every row
// gets the same validation as a hand-entered record. Rows that fail validation
// or repeat a roll number are skipped and reported.
type ImportService struct {
	guard             *Guard
	logger            *slog.Logger
	fileProgressMap   map[string]*ProgressInfo
	fileProgressLock  sync.RWMutex
	progressListeners map[chan *ProgressInfo]bool
	listenerLock      sync.RWMutex
}

func NewImportService(guard *Guard, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		guard:             guard,
		logger:            logger,
		fileProgressMap:   make(map[string]*ProgressInfo),
		progressListeners: make(map[chan *ProgressInfo]bool),
	}
}

func (s *ImportService) RegisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.progressListeners[ch] = true
}

// UnregisterProgressListener removes a client from receiving progress updates
func (s *ImportService) UnregisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.progressListeners, ch)
}

// BroadcastProgress sends a copy of progress to every listener that is ready.
func (s *ImportService) BroadcastProgress(progress *ProgressInfo) {
	s.listenerLock.RLock()
	defer s.listenerLock.RUnlock()

	for listener := range s.progressListeners {
		p := copyProgress(progress)
		select {
		case listener <- p:
		default:
		}
	}
}

func (s *ImportService) GetFileProgress(fileName string) *ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		return copyProgress(progress)
	}
	return nil
}

func (s *ImportService) GetAllFileProgress() []*ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	result := make([]*ProgressInfo, 0, len(s.fileProgressMap))
	for _, progress := range s.fileProgressMap {
		result = append(result, copyProgress(progress))
	}
	return result
}

// ProcessCSV imports the file at filePath, tracked under its base name.
func (s *ImportService) ProcessCSV(filePath string) error {
	fileName := filepath.Base(filePath)
	s.start(fileName)

	file, err := os.Open(filePath)
	if err != nil {
		s.fail(fileName, "Failed to open file: "+err.Error())
		return err
	}
	defer file.Close()

	return s.process(fileName, file)
}

// ProcessReader imports CSV content from r, tracked under name.
func (s *ImportService) ProcessReader(name string, r io.Reader) error {
	s.start(name)
	return s.process(name, r)
}

func (s *ImportService) process(fileName string, r io.Reader) error {
	startTime := time.Now()

	rows, err := storage.ReadRows(r)
	if err != nil {
		s.fail(fileName, "Failed to read CSV: "+err.Error())
		return err
	}
	s.update(fileName, func(p *ProgressInfo) { p.TotalRecords = len(rows) })

	for i, row := range rows {
		line := i + 2
		err := s.guard.Do(func(svc *StudentService) error {
			_, err := svc.Add(row)
			return err
		})

		switch {
		case err == nil:
			s.update(fileName, func(p *ProgressInfo) { p.Imported++ })
		case errors.Is(err, ErrIO):
			// The row is in memory but the store can no longer be saved; stop here.
			s.update(fileName, func(p *ProgressInfo) { p.Imported++; p.Processed++ })
			s.fail(fileName, fmt.Sprintf("line %d: %v", line, err))
			return err
		default:
			s.update(fileName, func(p *ProgressInfo) {
				p.Skipped++
				p.RowErrors = append(p.RowErrors, fmt.Sprintf("line %d: %v", line, err))
			})
		}

		s.update(fileName, func(p *ProgressInfo) { p.Processed++ })
		if (i+1)%progressEvery == 0 {
			s.broadcast(fileName)
		}
	}

	s.update(fileName, func(p *ProgressInfo) {
		p.Status = StatusCompleted
		p.EndTime = time.Now()
	})
	s.broadcast(fileName)

	p := s.GetFileProgress(fileName)
	s.logger.Info("import completed",
		slog.String("file", fileName),
		slog.Int("imported", p.Imported),
		slog.Int("skipped", p.Skipped),
		slog.Duration("took", time.Since(startTime)))
	return nil
}

func (s *ImportService) start(fileName string) {
	s.fileProgressLock.Lock()
	s.fileProgressMap[fileName] = &ProgressInfo{
		FileName:  fileName,
		Status:    StatusProcessing,
		StartTime: time.Now(),
	}
	s.fileProgressLock.Unlock()
}

func (s *ImportService) update(fileName string, fn func(*ProgressInfo)) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()
	if progress, exists := s.fileProgressMap[fileName]; exists {
		fn(progress)
	}
}

func (s *ImportService) broadcast(fileName string) {
	if p := s.GetFileProgress(fileName); p != nil {
		s.BroadcastProgress(p)
	}
}

// fail marks the import as errored and notifies listeners.
func (s *ImportService) fail(fileName string, errorMsg string) {
	s.update(fileName, func(p *ProgressInfo) {
		p.Status = StatusError
		p.Error = errorMsg
		p.EndTime = time.Now()
	})
	s.logger.Error("import failed", slog.String("file", fileName), slog.String("error", errorMsg))
	s.broadcast(fileName)
}

func copyProgress(p *ProgressInfo) *ProgressInfo {
	c := *p
	c.RowErrors = append([]string(nil), p.RowErrors...)
	return &c
}
