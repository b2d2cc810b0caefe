// Package main provides the agentconsole CLI: a terminal console for
// configuring, starting, stopping and watching a locally-run voice agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// version is set via -ldflags at build time.
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.teardown()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentconsole",
		Short: "agentconsole - configure and control a local voice agent",
		Long: `agentconsole edits the agent's configuration, starts and stops the agent,
and tails its log channel.

Running without a subcommand launches the interactive console.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd, isInteractive(cmd))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.flags.settingsPath, "config", "", "Path to the console settings file (default ./agentconsole.toml if present)")
	flags.StringVar(&a.flags.baseURL, "base-url", "", "Agent backend address (default http://localhost:8000)")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "Console log level: error, info or debug")
	flags.StringVar(&a.flags.logFile, "log-file", "", "Write console logs to this file")
	flags.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")

	rootCmd.AddCommand(
		newTUICmd(a),
		newConfigCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		newLogsCmd(a),
		newModelsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd.Name() == "tui" || !cmd.HasParent()
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentconsole %s\n", version)
		},
	}
}
