package main

import (
	"os"

	"github.com/kutbudev/boardroom/cli"
)

// Version will be set during build with ldflags
var Version = "0.1.0"

func main() {
	if err := cli.NewRootCommand(Version).Execute(); err != nil {
		os.Exit(1)
	}
}
