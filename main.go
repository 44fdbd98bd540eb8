package main

import (
	"fmt"
	"os"

	"github.com/ringneck/libwebphone/cmd"
	"github.com/ringneck/libwebphone/internal/buildinfo"
	"github.com/ringneck/libwebphone/internal/logger"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=..."
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	build := buildinfo.NewContext(version, buildDate, commit)

	rootCmd := cmd.RootCommand(build)
	err := rootCmd.Execute()

	if closeErr := logger.Global().Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "failed to close log files: %v\n", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
