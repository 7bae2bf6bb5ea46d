// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "sigparse",
	Short: "sigparse - signature rule parser and validator",
	Long: `sigparse parses Snort/Suricata-style detection rules into validated
signatures: header and option grammar, keyword dispatch, cross-keyword
validation, bidirectional expansion and duplicate resolution.

It is the rule-loading front end of a detection engine; use the check
command to validate rule files before deploying them.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and runs it.
// Called once from main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"engine config file path")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(keywordsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
