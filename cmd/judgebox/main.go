package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "judgebox",
	Short: "Judgebox - sandboxed multi-test runner for contest solutions",
	Long: `Judgebox compiles an untrusted solution once, runs it against every test
case in a fresh Docker container and reports a verdict per test.

Solutions can come from a code_contests dataset file, a Kafka topic or the
HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to judgebox.yaml (default: ./judgebox.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
