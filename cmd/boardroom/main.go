package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kutbudev/boardroom/internal/cli/commands"
)

// Version will be set during build with ldflags
var Version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "boardroom",
		Usage:   "Board intake service: triage, placement suggestions and extraction",
		Version: Version,
		Commands: []*cli.Command{
			commands.NewServeCommand(),
			commands.NewMigrateCommand(),
			commands.NewMcpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
