// Package cmd wires the CLI command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tycoon-kv/tycoon/cmd/kt"
	"github.com/tycoon-kv/tycoon/cmd/tt"
)

const (
	Version = "1.2.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tycoon",
		Short: "client for the Tycoon/Tyrant binary protocols",
		Long: fmt.Sprintf(`tycoon (v%s)

A command line client for the binary wire protocols of the Kyoto Tycoon
and Tokyo Tyrant key-value servers.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tycoon",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tycoon v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(kt.Commands)
	RootCmd.AddCommand(tt.Commands)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
