package notification

import (
	"MigraScope/internal/config"
	"MigraScope/internal/factory"
	"MigraScope/internal/model"
	"MigraScope/internal/report"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("email", func(cfg *config.Config, logger *log.Logger) (model.Writer, error) {
		if cfg.SMTP.Host == "" || cfg.SMTP.To == "" {
			return nil, fmt.Errorf("email writer needs smtp.host and smtp.to")
		}
		return NewEmailWriter(NewEmailNotifier(cfg.SMTP), cfg.SMTP.OnlyOnMigration, logger), nil
	})
}

// EmailWriter mails the report of a finished run.
type EmailWriter struct {
	notifier        model.Notifier
	onlyOnMigration bool
	logger          *log.Logger
}

// NewEmailWriter creates a writer that sends through notifier.
func NewEmailWriter(notifier model.Notifier, onlyOnMigration bool, logger *log.Logger) *EmailWriter {
	return &EmailWriter{notifier: notifier, onlyOnMigration: onlyOnMigration, logger: logger}
}

// Name returns the writer type.
func (w *EmailWriter) Name() string {
	return "email"
}

// Write sends the report, unless the run shows no migration and onlyOnMigration is set.
func (w *EmailWriter) Write(run *model.Run) error {
	detected := migrationDetected(run.Result)
	if w.onlyOnMigration && !detected {
		w.logger.Debugf("No migration detected in run '%s', skipping email.", run.Name)
		return nil
	}

	if err := w.notifier.Send(subject(run, detected), body(run)); err != nil {
		return err
	}
	w.logger.Infof("Report for run '%s' sent by email.", run.Name)
	return nil
}

func migrationDetected(r *model.AnalysisResult) bool {
	ind := r.Indicators
	return ind.HighBandwidth && ind.ConsistentTraffic && ind.LongDuration
}

func subject(run *model.Run, detected bool) string {
	if detected {
		return fmt.Sprintf("MigraScope: VM migration traffic detected in '%s'", run.Name)
	}
	return fmt.Sprintf("MigraScope: analysis of '%s'", run.Name)
}

// body renders the plain report inside a markdown document and converts it to HTML.
func body(run *model.Run) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# Run %s\n\n", run.Name)
	fmt.Fprintf(&md, "- Run ID: `%s`\n", run.ID)
	fmt.Fprintf(&md, "- Source: `%s`\n", run.Source)
	fmt.Fprintf(&md, "- Created: %s\n\n", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	md.WriteString("```\n")
	md.WriteString(report.Render(run.Result))
	md.WriteString("```\n")

	return string(markdown.ToHTML([]byte(md.String()), nil, nil))
}
