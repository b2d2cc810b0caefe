package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/agentconfig"
	"github.com/alexsjones/agentconsole/internal/catalog"
	"github.com/alexsjones/agentconsole/internal/console"
	"github.com/alexsjones/agentconsole/internal/logstream"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Start(cmd.Context())
			if err != nil {
				return errors.New(console.ControlFailed(console.ActionStart, err).Text)
			}
			a.metrics.SetAgentStatus(string(console.StatusRunning), console.Statuses...)
			printStatus(cmd, res, agentclient.StatusStarted)
			return nil
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Stop(cmd.Context())
			if err != nil {
				return errors.New(console.ControlFailed(console.ActionStop, err).Text)
			}
			a.metrics.SetAgentStatus(string(console.StatusStopped), console.Statuses...)
			printStatus(cmd, res, agentclient.StatusStopped)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, res agentclient.ControlResult, fallback string) {
	status := res.Status
	if status == "" {
		status = fallback
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
}

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Stream agent log lines to stdout until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.logSource()
			if err != nil {
				return err
			}
			s, err := src.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			for line := range s.Lines() {
				fmt.Fprintln(out, line)
			}
			err = s.Err()
			if logstream.IsDisconnect(err) {
				return errors.New(console.StreamEnded(err).Text)
			}
			return err
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	var (
		pipeline string
		apiKey   string
		baseURL  string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List OpenAI models usable by a pipeline",
		Long: `List the OpenAI models usable by a pipeline. The API key defaults to
OPENAI_API_KEY, then to the key stored in the backend configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := agentconfig.PipelineType(pipeline)
			key := apiKey
			if key == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			if key == "" || pipeline == "" {
				cfg, err := a.fetchConfig(ctx)
				if err != nil {
					return err
				}
				if key == "" {
					key = cfg.APIKey("openai")
				}
				if pipeline == "" {
					p = cfg.PipelineType
				}
			}

			models, err := catalog.Lister{BaseURL: baseURL}.List(ctx, key)
			if err != nil {
				return err
			}
			if !all {
				models = catalog.FilterFor(p, models)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tDEFAULT")
			def := catalog.DefaultModelFor(p)
			for _, id := range models {
				mark := ""
				if id == def {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\n", id, mark)
			}
			return w.Flush()
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&pipeline, "pipeline", "", "Filter for this pipeline (default: the backend's current pipeline)")
	flags.StringVar(&apiKey, "api-key", "", "OpenAI API key")
	flags.StringVar(&baseURL, "openai-base-url", "", "Override the OpenAI API base URL")
	flags.BoolVar(&all, "all", false, "Do not filter by pipeline")
	return cmd
}
