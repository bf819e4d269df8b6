package commands

import (
	"MigraScope/internal/model"
	"MigraScope/internal/store"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	show := cli.Command{
		Name:      "show",
		Usage:     "Print the traffic series of a stored run to standard out",
		ArgsUsage: "[RUN ID] (defaults to the latest run)",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
		},
		Action: showRun,
	}

	history := cli.Command{
		Name:  "history",
		Usage: "List stored runs, newest first",
		Flags: []cli.Flag{
			configFlag,
			cli.IntFlag{
				Name:  "limit, l",
				Usage: "list at most `N` runs (0 lists all)",
				Value: 20,
			},
		},
		Action: showHistory,
	}

	bootstrapCommands(show, history)
}

func openHistory(c *cli.Context) (*store.History, error) {
	res, err := initResources(c.String("config"))
	if err != nil {
		return nil, err
	}
	if res.cfg.History.Path == "" {
		return nil, fmt.Errorf("no history configured, set history.path")
	}
	return store.OpenHistory(res.cfg.History.Path)
}

func showRun(c *cli.Context) error {
	history, err := openHistory(c)
	if err != nil {
		return exitError(err)
	}
	defer history.Close()

	var run *model.Run
	if arg := c.Args().First(); arg != "" {
		id, err := uuid.Parse(arg)
		if err != nil {
			return cli.NewExitError("Invalid run ID "+arg, -1)
		}
		if run, err = history.Get(id); err != nil {
			return exitError(err)
		}
	} else {
		runs, err := history.List(1)
		if err != nil {
			return exitError(err)
		}
		if len(runs) == 0 {
			return cli.NewExitError("No runs were found", -1)
		}
		run = runs[0]
	}

	if c.Bool("human-readable") {
		showRunReport(os.Stdout, run)
		return nil
	}
	if err := showRunCsv(os.Stdout, run); err != nil {
		return exitError(err)
	}
	return nil
}

func showRunReport(w io.Writer, run *model.Run) {
	r := run.Result
	fmt.Fprintf(w, "Run %s (%s) from %s\n", run.Name, run.ID, run.Source)
	fmt.Fprintf(w, "Peak %s bytes, mean %s bytes, std dev %s bytes per %s\n",
		humanize.Comma(r.PeakBucketBytes),
		humanize.Commaf(roundTo(r.MeanBucketBytes, 2)),
		humanize.Commaf(roundTo(r.StdDevBucketBytes, 2)),
		r.BucketWidth)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Bucket Start", "Bytes", "Share"})
	for _, b := range r.TrafficByBucket {
		table.Append([]string{
			b.Start.UTC().Format(time.RFC3339),
			humanize.Comma(b.Bytes),
			share(b.Bytes, r.TotalBytes),
		})
	}
	table.Render()
}

func showRunCsv(w io.Writer, run *model.Run) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"bucket_start", "bytes"})
	for _, b := range run.Result.TrafficByBucket {
		csvWriter.Write([]string{b.Start.UTC().Format(time.RFC3339Nano), strconv.FormatInt(b.Bytes, 10)})
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func showHistory(c *cli.Context) error {
	history, err := openHistory(c)
	if err != nil {
		return exitError(err)
	}
	defer history.Close()

	runs, err := history.List(c.Int("limit"))
	if err != nil {
		return exitError(err)
	}
	showHistoryTable(os.Stdout, runs)
	return nil
}

func showHistoryTable(w io.Writer, runs []*model.Run) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run ID", "Name", "Created", "Packets", "Bytes", "High BW", "Consistent", "Long"})
	for _, run := range runs {
		r := run.Result
		table.Append([]string{
			run.ID.String(),
			run.Name,
			run.CreatedAt.Format(time.RFC3339),
			humanize.Comma(int64(r.TotalPackets)),
			humanize.Comma(r.TotalBytes),
			yesNo(r.Indicators.HighBandwidth),
			yesNo(r.Indicators.ConsistentTraffic),
			yesNo(r.Indicators.LongDuration),
		})
	}
	table.Render()
}

func share(part, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 1, 64) + "%"
}

func roundTo(v float64, digits int) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', digits, 64), 64)
	return f
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
