package report

import (
	"MigraScope/internal/config"
	"MigraScope/internal/factory"
	"MigraScope/internal/model"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("text", func(cfg *config.Config, logger *log.Logger) (model.Writer, error) {
		return NewTextWriter(cfg.Report.RootPath, logger), nil
	})
}

// TextWriter writes the rendered text report of a run to <root>/<name>.txt.
type TextWriter struct {
	rootPath string
	logger   *log.Logger
}

// NewTextWriter creates a new text report writer.
func NewTextWriter(rootPath string, logger *log.Logger) *TextWriter {
	return &TextWriter{rootPath: rootPath, logger: logger}
}

// Name returns the writer type.
func (w *TextWriter) Name() string {
	return "text"
}

// Path returns the file a run's report is written to.
func (w *TextWriter) Path(run *model.Run) string {
	return filepath.Join(w.rootPath, fileName(run, ".txt"))
}

// Write renders the run's result and writes it to disk, replacing any previous file.
func (w *TextWriter) Write(run *model.Run) error {
	if err := os.MkdirAll(w.rootPath, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	filePath := w.Path(run)
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", filePath, err)
	}

	if err := Write(file, run.Result); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report file '%s': %w", filePath, err)
	}

	w.logger.Infof("Report for run '%s' written to %s", run.Name, filePath)
	return nil
}

// fileName derives a file name from the run name, falling back to the run ID.
func fileName(run *model.Run, ext string) string {
	name := filepath.Base(run.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = run.ID.String()
	}
	return name + ext
}
