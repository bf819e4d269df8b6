package commands

import (
	"MigraScope/internal/session"
	"MigraScope/internal/table"
	"MigraScope/pkg/pcap"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "capture",
		Usage: "Capture live traffic, store it as a table and analyze it",
		Flags: []cli.Flag{
			configFlag,
			nameFlag,
			cli.StringFlag{
				Name:  "interface, i",
				Usage: "capture from `IFACE` (overrides capture.interface)",
			},
			cli.DurationFlag{
				Name:  "duration, t",
				Usage: "capture for `DURATION` (overrides capture.duration)",
			},
			cli.StringFlag{
				Name:  "output, o",
				Usage: "write the captured table to `FILE` (.csv or .csv.gz)",
			},
		},
		Action: captureLive,
	}

	bootstrapCommands(command)
}

func captureLive(c *cli.Context) error {
	res, err := initResources(c.String("config"))
	if err != nil {
		return exitError(err)
	}
	cfg := res.cfg

	duration, err := cfg.Capture.CaptureDuration()
	if err != nil {
		return exitError(err)
	}
	if c.IsSet("duration") {
		duration = c.Duration("duration")
	}
	iface := cfg.Capture.Interface
	if c.IsSet("interface") {
		iface = c.String("interface")
	}

	started := time.Now()
	output := c.String("output")
	if output == "" {
		output = filepath.Join(cfg.Capture.OutputDir, fmt.Sprintf("traffic_%s.csv", started.Format("20060102_150405")))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return exitError(err)
	}
	name := c.String("name")
	if name == "" {
		name = runName(output)
	}

	ctx, cancel := signalContext()
	defer cancel()

	live := pcap.LiveSource{
		Interface:   iface,
		Duration:    duration,
		SnapshotLen: cfg.Capture.SnapshotLen,
		Promiscuous: cfg.Capture.Promiscuous,
	}
	res.logger.Infof("Capturing on %s for %s", iface, duration)
	records, err := live.Records(ctx)
	if err != nil {
		return exitError(err)
	}
	if err := table.Save(output, records); err != nil {
		return exitError(err)
	}
	res.logger.Infof("Captured %s packets into %s", humanize.Comma(int64(len(records))), output)

	ssn, err := session.New(cfg, res.logger)
	if err != nil {
		return exitError(err)
	}
	defer ssn.Close()

	run, err := ssn.Run(ctx, name, table.FileSource{Path: output})
	if run == nil {
		return exitError(err)
	}
	if werr := printRun(os.Stdout, run); werr != nil {
		return exitError(werr)
	}
	if err != nil {
		return exitError(err)
	}
	return nil
}
