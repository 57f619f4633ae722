// Package main is the entry point for the alhena-lite QC server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "alhena-lite",
	Short: "Single-cell HMMcopy QC server",
	Long: `alhena-lite serves per-cell quality-control views of HMMcopy results:
QC metrics with nested copy-number segments, read-count bins and GC-bias
curves, loaded on demand from a dataset directory.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "alhena-lite version %s\n", version)
	},
}
