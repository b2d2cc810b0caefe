package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/catalog"
	"github.com/alexsjones/agentconsole/internal/logging"
	"github.com/alexsjones/agentconsole/internal/logstream"
	"github.com/alexsjones/agentconsole/internal/metrics"
	"github.com/alexsjones/agentconsole/internal/observability"
	"github.com/alexsjones/agentconsole/internal/settings"
	"github.com/alexsjones/agentconsole/internal/tui"
)

type globalFlags struct {
	settingsPath string
	baseURL      string
	logLevel     string
	logFile      string
	metricsAddr  string
}

// app carries everything the subcommands share.
type app struct {
	flags    globalFlags
	settings settings.Settings
	log      logr.Logger
	flush    func()
	metrics  *metrics.Recorder
	otel     *observability.Provider
	client   *agentclient.Client
	ready    atomic.Bool
	stopSrv  context.CancelFunc
}

func (a *app) setup(cmd *cobra.Command, interactive bool) error {
	path := a.flags.settingsPath
	required := cmd.Flags().Changed("config")
	if path == "" {
		path = settings.DefaultConfigPath
	}
	s, err := settings.Load(path, required)
	if err != nil {
		return err
	}
	if a.flags.baseURL != "" {
		s.Backend.BaseURL = settings.NormalizeBaseURL(a.flags.baseURL)
	}
	if a.flags.logLevel != "" {
		s.Log.Level = strings.ToLower(a.flags.logLevel)
	}
	if a.flags.logFile != "" {
		s.Log.File = a.flags.logFile
	}
	if a.flags.metricsAddr != "" {
		s.Metrics.Addr = a.flags.metricsAddr
	}
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings = s

	logOpts := logging.Options{Level: s.Log.Level, Format: s.Log.Format, File: s.Log.File}
	if !interactive {
		logOpts.Fallback = cmd.ErrOrStderr()
	}
	log, flush, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	a.log, a.flush = log, flush

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithContext(ctx, log)
	cmd.SetContext(ctx)

	a.metrics = metrics.NewRecorder()
	if s.Metrics.Addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		a.stopSrv = cancel
		ready := a.ready.Load
		if err := metrics.NewServer(a.metrics, ready, a.log.WithName("metrics")).Start(srvCtx, s.Metrics.Addr); err != nil {
			return err
		}
	}
	if !interactive {
		a.ready.Store(true)
	}

	a.otel = observability.Setup(ctx, s.OTel, a.log.WithName("otel"))

	a.client, err = agentclient.New(s.Backend.BaseURL,
		agentclient.WithTimeout(s.Backend.RequestTimeout.Duration),
		agentclient.WithLogger(a.log.WithName("agentclient")),
		agentclient.WithMetrics(a.metrics),
		agentclient.WithTracer(a.otel.Tracer()),
	)
	if err != nil {
		return err
	}
	a.log.V(1).Info("Console configured", "baseURL", s.Backend.BaseURL, "logSource", s.Logs.Source)
	return nil
}

func (a *app) teardown() {
	if a.stopSrv != nil {
		a.stopSrv()
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otel.Shutdown(ctx); err != nil {
			a.log.Error(err, "OTel shutdown failed")
		}
		cancel()
	}
	if a.flush != nil {
		a.flush()
	}
}

func (a *app) logSource() (logstream.Source, error) {
	return logstream.NewSource(a.settings, a.log.WithName("logstream"), a.metrics)
}

func (a *app) runTUI(cmd *cobra.Command) error {
	src, err := a.logSource()
	if err != nil {
		return err
	}

	m := tui.New(tui.Options{
		Backend: a.client,
		Logs:    src,
		Models:  catalog.Lister{},
		Log:     a.log.WithName("tui"),
		Metrics: a.metrics,
		BaseURL: a.client.BaseURL(),
		Ready:   &a.ready,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(cmd.OutOrStdout()))
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}
