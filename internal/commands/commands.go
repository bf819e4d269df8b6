package commands

import (
	"MigraScope/internal/config"
	"MigraScope/internal/logging"
	"MigraScope/internal/model"
	"MigraScope/internal/report"
	"MigraScope/internal/table"
	"MigraScope/pkg/pcap"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var allCommands []cli.Command

// bootstrapCommands is called by each command file's init.
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "load configuration from `FILE`",
		Value: "",
	}
	nameFlag = cli.StringFlag{
		Name:  "name, n",
		Usage: "store the run as `NAME` (defaults to the input file name)",
		Value: "",
	}
	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "print a formatted table instead of CSV",
	}
)

// resources bundles what every command needs.
type resources struct {
	cfg    *config.Config
	logger *log.Logger
}

// initResources loads the config file, or the defaults when path is empty.
func initResources(path string) (*resources, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &resources{cfg: cfg, logger: logger}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// sourceFor picks the source matching the input file's extension.
func sourceFor(path string) model.Source {
	base := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch filepath.Ext(base) {
	case ".pcap", ".pcapng", ".cap":
		return pcap.FileSource{Path: path}
	default:
		return table.FileSource{Path: path}
	}
}

// runName derives a run name from the input path, e.g. "captures/vm-01.pcap.gz" -> "vm-01".
func runName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func exitError(err error) error {
	return cli.NewExitError(err.Error(), -1)
}

// printRun writes the run's report and ID to w.
func printRun(w io.Writer, run *model.Run) error {
	if err := report.Write(w, run.Result); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}
	_, err := fmt.Fprintf(w, "\nRun ID: %s\n", run.ID)
	return err
}
