package session

import (
	"MigraScope/internal/analyzer"
	"MigraScope/internal/config"
	"MigraScope/internal/factory"
	"MigraScope/internal/model"
	_ "MigraScope/internal/notification" // Registers email writer
	_ "MigraScope/internal/report"       // Registers text and json writers
	"MigraScope/internal/store"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrWrite marks a run whose result is valid but could not be fully persisted.
var ErrWrite = errors.New("failed to persist run")

// Session acquires records from a source, analyzes them once and hands the
// finished run to the history store and every configured writer.
type Session struct {
	analyzer model.Analyzer
	writers  []model.Writer
	history  *store.History
	logger   *log.Logger
}

// New builds a session from the application config.
func New(cfg *config.Config, logger *log.Logger) (*Session, error) {
	width, err := cfg.Analyzer.Width()
	if err != nil {
		return nil, err
	}

	writers, err := factory.Create(cfg, logger)
	if err != nil {
		return nil, err
	}

	var history *store.History
	if cfg.History.Path != "" {
		history, err = store.OpenHistory(cfg.History.Path)
		if err != nil {
			closeWriters(writers, logger)
			return nil, err
		}
	}

	return NewWith(analyzer.New(width), writers, history, logger), nil
}

// NewWith assembles a session from explicit parts. history may be nil.
func NewWith(a model.Analyzer, writers []model.Writer, history *store.History, logger *log.Logger) *Session {
	return &Session{analyzer: a, writers: writers, history: history, logger: logger}
}

// History returns the history store, or nil when none is configured.
func (s *Session) History() *store.History {
	return s.history
}

type acquisition struct {
	records []model.PacketRecord
	err     error
}

// Run analyzes everything source delivers. If acquisition or analysis fails
// no run is produced. If persisting fails the run is returned together with
// an error wrapping ErrWrite.
func (s *Session) Run(ctx context.Context, name string, source model.Source) (*model.Run, error) {
	s.logger.Infof("Session '%s' acquiring records from %s", name, source)
	start := time.Now()

	done := make(chan acquisition, 1)
	go func() {
		records, err := source.Records(ctx)
		done <- acquisition{records: records, err: err}
	}()

	// The source decides what cancellation means. A live capture bounded only
	// by ctx returns what it collected once ctx is done.
	acq := <-done
	if acq.err != nil {
		return nil, fmt.Errorf("acquiring records from %s: %w", source, acq.err)
	}
	s.logger.Infof("Acquired %d records in %s", len(acq.records), time.Since(start).Round(time.Millisecond))

	result, err := s.analyzer.Analyze(acq.records)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", source, err)
	}

	run := model.NewRun(name, source.String(), result)
	if err := s.persist(run); err != nil {
		return run, err
	}
	return run, nil
}

// persist stores run in the history and fans it out to all writers concurrently.
func (s *Session) persist(run *model.Run) error {
	var errs []error
	if s.history != nil {
		if err := s.history.Put(run); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	wg.Add(len(s.writers))
	for _, writer := range s.writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(run); err != nil {
				s.logger.Errorf("Error writing run '%s' with writer %s: %v", run.Name, w.Name(), err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s writer: %w", w.Name(), err))
				mu.Unlock()
			}
		}(writer)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%w '%s': %w", ErrWrite, run.Name, errors.Join(errs...))
	}
	return nil
}

// Close releases the history store and any writer holding a connection.
func (s *Session) Close() error {
	closeWriters(s.writers, s.logger)
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

func closeWriters(writers []model.Writer, logger *log.Logger) {
	for _, w := range writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warnf("Error closing writer %s: %v", w.Name(), err)
			}
		}
	}
}
