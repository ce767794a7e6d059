package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"movetrack/internal/version"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Current()
		output, err := FormatResponse(&VersionResponse{
			Version:   info.Version,
			Commit:    info.Commit,
			BuildDate: info.BuildDate,
		}, OutputFormat(versionFormat))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(output)
	},
}

// VersionResponse is the build information of the binary.
type VersionResponse struct {
	Version   string `json:"version" yaml:"version" toml:"version"`
	Commit    string `json:"commit" yaml:"commit" toml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate" toml:"buildDate"`
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "human", "Output format (json, yaml, toml, human)")
	rootCmd.AddCommand(versionCmd)
}
