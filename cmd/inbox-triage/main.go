package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "inbox-triage",
		Short: "Review-first email triage daemon",
		Long: `inbox-triage routes incoming email into per-user buckets, asks an LLM to
classify, summarize and draft replies where a bucket allows it, and pushes
a notification for mail that needs attention. Replies are only ever sent
after a human approves them.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default searches /etc/inbox-triage, ~/.inbox-triage, ./configs, .)")

	root.AddCommand(
		newServeCmd(&configFile),
		newPollCmd(&configFile),
		newUserCmd(configuredStore(&configFile)),
		newBucketsCmd(configuredStore(&configFile)),
	)

	// serve is the default command
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
