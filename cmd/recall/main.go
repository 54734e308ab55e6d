package main

import (
	"os"

	"github.com/dshills/recall-mcp/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := cli.Execute(cli.BuildInfo{Version: version, BuildTime: buildTime}); err != nil {
		os.Exit(1)
	}
}
