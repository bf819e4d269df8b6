package commands

import (
	"MigraScope/internal/session"
	"errors"
	"os"

	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a stored capture and write the migration report",
		ArgsUsage: "FILE (.csv, .csv.gz, .pcap, .pcapng, optionally .gz)",
		Flags: []cli.Flag{
			configFlag,
			nameFlag,
			cli.BoolFlag{
				Name:  "quiet, q",
				Usage: "do not print the report to standard out",
			},
		},
		Action: analyzeFile,
	}

	bootstrapCommands(command)
}

func analyzeFile(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("Specify an input file", -1)
	}
	res, err := initResources(c.String("config"))
	if err != nil {
		return exitError(err)
	}

	name := c.String("name")
	if name == "" {
		name = runName(path)
	}

	ssn, err := session.New(res.cfg, res.logger)
	if err != nil {
		return exitError(err)
	}
	defer ssn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	run, err := ssn.Run(ctx, name, sourceFor(path))
	if run == nil {
		return exitError(err)
	}
	if !c.Bool("quiet") {
		if werr := printRun(os.Stdout, run); werr != nil {
			return exitError(werr)
		}
	}
	if errors.Is(err, session.ErrWrite) {
		return exitError(err)
	}
	return nil
}
