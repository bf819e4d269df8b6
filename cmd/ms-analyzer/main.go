package main

import (
	"MigraScope/internal/commands"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "ms-analyzer"
	app.Usage = "Detect live VM migration traffic in packet captures."
	app.Version = "0.3.0"
	app.Commands = commands.Commands()

	app.Run(os.Args)
}
