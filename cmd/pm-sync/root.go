package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nucleus/pm-sync/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pm-sync",
	Short: "Sync projects, work items and rosters from issue trackers",
	Long: `pm-sync connects to GitHub, GitLab, Jira and Azure DevOps, reconciles
their projects, work items, team members and workflows into one store, and
serves analytics over a REST API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			os.Setenv(config.ConfigPathEnvVar, cfgFile)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (overrides "+config.ConfigPathEnvVar+")")
	rootCmd.AddCommand(serveCmd, migrateCmd, syncCmd, healthCmd, servicesCmd)
}
