package factory

import (
	"MigraScope/internal/config"
	"MigraScope/internal/model"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// WriterFactory defines a function that creates a writer from the application config.
type WriterFactory func(cfg *config.Config, logger *log.Logger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered reports whether a writer type is known.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Create creates the writers listed in cfg.Report.Writers, in order.
func Create(cfg *config.Config, logger *log.Logger) ([]model.Writer, error) {
	writers := make([]model.Writer, 0, len(cfg.Report.Writers))

	for _, writerType := range cfg.Report.Writers {
		logger.Debugf("Creating writer of type '%s'", writerType)

		factory, ok := registry[writerType]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", writerType)
		}

		writer, err := factory(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating writer type '%s': %w", writerType, err)
		}

		writers = append(writers, writer)
	}

	return writers, nil
}
