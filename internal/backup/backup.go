// Package backup persists snapshots of the live sessions and temporary URLs
// so they survive a server restart. Snapshots are written asynchronously by
// a small worker pool; when the database is unreachable the snapshot goes to
// flat TSV files instead.
package backup

import (
	"log/slog"
	"sync"

	"github.com/genoweb/genoserve/internal/models"
)

// Target is a destination snapshots can be written to.
type Target interface {
	ReplaceSessions([]models.Session) error
	ReplaceURLs([]models.URLEntity) error
}

// Source is a place state can be restored from.
type Source interface {
	LoadSessions() ([]models.Session, error)
	LoadURLs() ([]models.URLEntity, error)
}

type job struct {
	name string
	run  func(Target) error
}

// Service runs snapshot writes on a bounded worker pool. Each enqueued
// snapshot is complete in itself, so when the queue is full the oldest
// pending job can be dropped: the next snapshot supersedes it anyway.
type Service struct {
	primary  Target
	fallback Target
	log      *slog.Logger

	// OnPrimaryFailure is called whenever a snapshot write to the primary
	// target fails. May be nil.
	OnPrimaryFailure func()

	jobs chan job
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// New creates a backup service with the given number of workers, clamped to
// [1, 2].
func New(primary, fallback Target, workers int, log *slog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	if workers > 2 {
		workers = 2
	}

	s := &Service{
		primary:  primary,
		fallback: fallback,
		log:      log,
		jobs:     make(chan job, 16),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Service) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		err := j.run(s.primary)
		if err == nil {
			continue
		}
		s.log.Warn("backup write failed, falling back to flat files", "snapshot", j.name, "error", err)
		if s.OnPrimaryFailure != nil {
			s.OnPrimaryFailure()
		}
		if s.fallback == nil {
			continue
		}
		if err := j.run(s.fallback); err != nil {
			s.log.Error("fallback backup write failed", "snapshot", j.name, "error", err)
		}
	}
}

func (s *Service) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		select {
		case <-s.jobs:
		default:
		}
		select {
		case s.jobs <- j:
		default:
			s.log.Warn("backup queue full, snapshot dropped", "snapshot", j.name)
		}
	}
}

// Sessions schedules a session snapshot write.
func (s *Service) Sessions(snapshot []models.Session) {
	s.enqueue(job{
		name: "sessions",
		run:  func(t Target) error { return t.ReplaceSessions(snapshot) },
	})
}

// URLs schedules a temporary-URL snapshot write.
func (s *Service) URLs(snapshot []models.URLEntity) {
	s.enqueue(job{
		name: "urls",
		run:  func(t Target) error { return t.ReplaceURLs(snapshot) },
	})
}

// Close stops accepting snapshots and waits for the pending ones to be
// written.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

// Restore loads sessions and URLs from the primary source, falling back to
// the flat files when the primary fails.
func Restore(primary, fallback Source, log *slog.Logger) ([]models.Session, []models.URLEntity) {
	sessions, err := primary.LoadSessions()
	if err != nil {
		log.Warn("restoring sessions from database failed", "error", err)
		if fallback != nil {
			sessions, err = fallback.LoadSessions()
			if err != nil {
				log.Warn("restoring sessions from flat files failed", "error", err)
			}
		}
	}

	urls, err := primary.LoadURLs()
	if err != nil {
		log.Warn("restoring URLs from database failed", "error", err)
		if fallback != nil {
			urls, err = fallback.LoadURLs()
			if err != nil {
				log.Warn("restoring URLs from flat files failed", "error", err)
			}
		}
	}
	return sessions, urls
}
