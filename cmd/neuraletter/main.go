package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neuraletter",
		Short: "Track topics and deliver AI-curated update digests",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCommand())
	root.AddCommand(serveCommand())
	root.AddCommand(collectCommand())
	root.AddCommand(topicsCommand())
	root.AddCommand(genAgentCommand())

	return root
}

func runCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with topic scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server without the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func collectCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "collect <topic-id>",
		Short: "Run one collection run for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(args[0], mode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "enrich", "pipeline to run: enrich or crawl")
	return cmd
}

func topicsCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List tracked topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopics(user)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only topics owned by this user id")
	return cmd
}

func genAgentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-agent",
		Short: "Provision the structured-extraction agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenAgent()
		},
	}
}
