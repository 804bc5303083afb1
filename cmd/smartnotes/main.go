package main

import (
	"context"
	"fmt"
	"os"

	"smartnotes/internal/cli"
)

// set by -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := cli.Execute(context.Background(), cli.BuildInfo{Version: version, Commit: commit}); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
