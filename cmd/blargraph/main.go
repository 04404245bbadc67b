// Command blargraph drives the four-stage pipeline this repository
// implements (spec §2 SYSTEM OVERVIEW): build the property graph for a
// repository, apply incremental updates, overlay a PR diff, and run the
// bottom-up batch processor over whatever documentation/workflow tasks are
// configured.
//
// Structured as one cobra.Command tree rather than the teacher's one-binary-
// per-microservice layout, since this pipeline's stages share a single
// in-memory Graph within a run instead of round-tripping through a shared
// Postgres staging schema between separate processes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "blargraph",
	Short:   "Build and maintain a typed code property graph",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to ./.blargraph/config.yaml or $HOME/.blargraph/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("blargraph %s\nbuild time: %s\ngit commit: %s\n", version, buildTime, gitCommit))

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(processCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
