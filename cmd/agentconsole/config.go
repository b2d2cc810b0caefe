package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexsjones/agentconsole/internal/agentconfig"
	"github.com/alexsjones/agentconsole/internal/console"
	"github.com/alexsjones/agentconsole/internal/logging"
	"github.com/alexsjones/agentconsole/internal/watch"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the agent configuration",
	}
	cmd.AddCommand(newConfigGetCmd(a), newConfigSetCmd(a), newConfigApplyCmd(a))
	return cmd
}

func newConfigGetCmd(a *app) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the backend configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.fetchConfig(cmd.Context())
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = maskSecrets(cfg)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print API keys in clear text")
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	var (
		systemPrompt string
		pipeline     string
		model        string
		voice        string
		apiKeys      []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual configuration fields and save",
		Example: `  agentconsole config set --pipeline cascading --model gpt-4o
  agentconsole config set --api-key openai=sk-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var edits []console.Edit
			flags := cmd.Flags()
			if flags.Changed("system-prompt") {
				edits = append(edits, console.EditSystemPrompt{Value: systemPrompt})
			}
			if flags.Changed("pipeline") {
				edits = append(edits, console.EditPipeline{Value: agentconfig.PipelineType(pipeline)})
			}
			if flags.Changed("model") {
				edits = append(edits, console.EditModel{Value: model})
			}
			if flags.Changed("voice") {
				edits = append(edits, console.EditVoice{Value: voice})
			}
			for _, kv := range apiKeys {
				e, err := parseAPIKey(kv)
				if err != nil {
					return err
				}
				edits = append(edits, e)
			}
			if len(edits) == 0 {
				return fmt.Errorf("nothing to set: pass at least one field flag")
			}

			ctx := cmd.Context()
			raw, err := a.client.GetConfig(ctx)
			if err != nil {
				return err
			}
			ed, err := console.NewEditor().Load(raw)
			if err != nil {
				return err
			}
			for _, e := range edits {
				ed = ed.Apply(e)
			}
			if err := a.client.SaveConfig(ctx, ed.Config); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), console.SaveSucceeded().Text)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&systemPrompt, "system-prompt", "", "System prompt text")
	flags.StringVar(&pipeline, "pipeline", "", "Pipeline type: realtime or cascading")
	flags.StringVar(&model, "model", "", "LLM model identifier")
	flags.StringVar(&voice, "voice", "", "Voice name")
	flags.StringArrayVar(&apiKeys, "api-key", nil, "Provider API key as provider=value (repeatable)")
	return cmd
}

func newConfigApplyCmd(a *app) *cobra.Command {
	var (
		file      string
		watchFile bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge a JSON configuration file over the backend configuration and save",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := a.applyFile(ctx, file, out); err != nil {
				return err
			}
			if !watchFile {
				return nil
			}

			log := logging.FromContext(ctx)
			w, err := watch.New(log.WithName("watch"))
			if err != nil {
				return err
			}
			defer w.Close()
			events, err := w.WatchFile(ctx, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", file)
			for ev := range events {
				log.V(1).Info("Configuration file changed", "path", ev.Path, "op", ev.Op)
				if err := a.applyFile(ctx, file, out); err != nil {
					log.Error(err, "Applying configuration file failed", "path", file)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", console.SaveFailed(err).Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file holding configuration fields")
	cmd.Flags().BoolVar(&watchFile, "watch", false, "Re-apply the file whenever it changes")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) fetchConfig(ctx context.Context) (agentconfig.Config, error) {
	raw, err := a.client.GetConfig(ctx)
	if err != nil {
		return agentconfig.Config{}, err
	}
	return agentconfig.Merge(agentconfig.Default(), raw)
}

// applyFile merges the file's fields over the backend's current document.
func (a *app) applyFile(ctx context.Context, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	base, err := a.fetchConfig(ctx)
	if err != nil {
		return err
	}
	cfg, err := agentconfig.Merge(base, data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if agentconfig.Equal(base, cfg) {
		fmt.Fprintln(out, "Configuration unchanged")
		return nil
	}
	if err := a.client.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, console.SaveSucceeded().Text)
	return nil
}

func parseAPIKey(kv string) (console.EditAPIKey, error) {
	provider, value, ok := strings.Cut(kv, "=")
	provider = strings.TrimSpace(provider)
	if !ok || provider == "" {
		return console.EditAPIKey{}, fmt.Errorf("invalid --api-key %q: want provider=value", kv)
	}
	return console.EditAPIKey{Provider: provider, Value: value}, nil
}

func maskSecrets(cfg agentconfig.Config) agentconfig.Config {
	out := cfg.Clone()
	for _, p := range out.Providers() {
		out.APIKeys[p] = maskSecret(out.APIKeys[p])
	}
	return out
}

func maskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return strings.Repeat("*", len(v))
	default:
		return v[:3] + strings.Repeat("*", 5) + v[len(v)-4:]
	}
}
