package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "issuemirror",
		Short: "Mirror GitLab issues into a Notion database",
		Long: `issuemirror receives GitLab issue webhooks and keeps one Notion page per
issue in sync with the issue's title, description, assignee, milestone, epic,
time tracking and Estado/Prioridad/Modulo/Tipo labels.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./config.yaml or /etc/issuemirror/config.yaml)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newReplayCmd(&configPath))

	return root
}
