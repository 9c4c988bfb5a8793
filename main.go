package main

import (
	"fmt"
	"os"

	"github.com/tphakala/healthdesk/cmd"
	"github.com/tphakala/healthdesk/internal/buildinfo"
	"github.com/tphakala/healthdesk/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings, buildinfo.Current())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
