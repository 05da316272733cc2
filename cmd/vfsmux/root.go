package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "vfsmux",
	Short: "demo and diagnostics for the vfsmux dispatcher",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("bad --log-level: %w", err)
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// addFlags binds the global flags to the given flag set.
func addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&logLevel, "log-level", "info", "logging level (trace|debug|info|warn|error)")
}

func init() {
	addFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(treeCmd)
}
