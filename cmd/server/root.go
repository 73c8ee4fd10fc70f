package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:     "smpd",
	Short:   "Service metadata publisher daemon",
	Long:    `smpd keeps participant registrations consistent between the local metadata store and the SML directory.`,
	Version: version,
	// serve is the default action.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (yaml); SMPD_* environment variables override it")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
