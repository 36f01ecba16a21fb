// Package logging owns the process-wide slog output. The log file handle is
// held by a Service so that writers never touch a bare file variable and
// Rotate can swap the file while connection workers keep logging.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Service writes JSON log records to stdout or to a dated file in dir,
// switching files on Rotate.
type Service struct {
	mu   sync.Mutex
	dir  string
	file *os.File
}

// New creates a logging service. With an empty dir, records go to stdout and
// Rotate is a no-op.
func New(dir string) (*Service, error) {
	s := &Service{dir: dir}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := s.openCurrent(); err != nil {
			return nil, err
		}
	}
	logger := slog.New(slog.NewJSONHandler(s, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return s, nil
}

// Write implements io.Writer under the service mutex so a concurrent Rotate
// never races a record mid-write.
func (s *Service) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.Stdout.Write(p)
	}
	return s.file.Write(p)
}

// Rotate switches to the log file for the current date. Called from the
// periodic maintenance timer; switching is skipped while the date is
// unchanged.
func (s *Service) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil
	}
	next := s.currentName()
	if s.file != nil && s.file.Name() == next {
		return nil
	}
	return s.openLocked(next)
}

// CurrentFile returns the active log file path, or "" when logging to stdout.
func (s *Service) CurrentFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Close flushes and closes the active file.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Service) openCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(s.currentName())
}

func (s *Service) openLocked(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if s.file != nil {
		s.file.Close()
	}
	s.file = f
	return nil
}

func (s *Service) currentName() string {
	return filepath.Join(s.dir, "genoserve_"+time.Now().Format("2006-01-02")+".log")
}

var _ io.Writer = (*Service)(nil)
