package report

import (
	"MigraScope/internal/config"
	"MigraScope/internal/factory"
	"MigraScope/internal/model"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	factory.RegisterWriter("json", func(cfg *config.Config, logger *log.Logger) (model.Writer, error) {
		return NewJSONWriter(cfg.Report.RootPath, logger), nil
	})
}

// SummaryData is the machine-readable companion of the text report.
type SummaryData struct {
	RunID     string                `json:"run_id"`
	Name      string                `json:"name"`
	Source    string                `json:"source"`
	CreatedAt string                `json:"created_at"`
	Result    *model.AnalysisResult `json:"result"`
}

// JSONWriter writes a run summary to <root>/<name>.json.
type JSONWriter struct {
	rootPath string
	logger   *log.Logger
}

// NewJSONWriter creates a new JSON summary writer.
func NewJSONWriter(rootPath string, logger *log.Logger) *JSONWriter {
	return &JSONWriter{rootPath: rootPath, logger: logger}
}

// Name returns the writer type.
func (w *JSONWriter) Name() string {
	return "json"
}

// Write serializes the run summary to disk.
func (w *JSONWriter) Write(run *model.Run) error {
	if err := os.MkdirAll(w.rootPath, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	summary := SummaryData{
		RunID:     run.ID.String(),
		Name:      run.Name,
		Source:    run.Source,
		CreatedAt: run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Result:    run.Result,
	}

	filePath := filepath.Join(w.rootPath, fileName(run, ".json"))
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	jsonEncoder := json.NewEncoder(file)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close summary file '%s': %w", filePath, err)
	}

	w.logger.Infof("Summary for run '%s' written to %s", run.Name, filePath)
	return nil
}
