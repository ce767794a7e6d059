package main

import (
	"github.com/spf13/cobra"

	"movetrack/internal/version"
)

var (
	rootDir   string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "movetrack",
	Short: "movetrack - file move and rename detection",
	Long: `movetrack compares the files of a new analysis with those of the previous one
and records which files were moved or renamed, so that history attached to a file
follows it instead of being reported as a deletion plus a creation.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("movetrack version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".",
		"Directory holding the .movetrack state directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logs")
}
