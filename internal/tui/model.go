// Package tui is the interactive config console: a configuration editor,
// the agent start/stop control and a live view of the agent's log channel.
package tui

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/agentconfig"
	"github.com/alexsjones/agentconsole/internal/catalog"
	"github.com/alexsjones/agentconsole/internal/console"
	"github.com/alexsjones/agentconsole/internal/logstream"
	"github.com/alexsjones/agentconsole/internal/metrics"
)

// Backend is the agent API the console drives.
type Backend interface {
	GetConfig(ctx context.Context) ([]byte, error)
	SaveConfig(ctx context.Context, cfg agentconfig.Config) error
	Start(ctx context.Context) (agentclient.ControlResult, error)
	Stop(ctx context.Context) (agentclient.ControlResult, error)
}

// ModelLister lists model ids available to an API key.
type ModelLister interface {
	List(ctx context.Context, apiKey string) ([]string, error)
}

// Options wires the console to its collaborators. Backend and Logs are
// required.
type Options struct {
	Backend Backend
	Logs    logstream.Source
	Models  ModelLister
	Log     logr.Logger
	Metrics *metrics.Recorder
	// BaseURL is shown in the header.
	BaseURL string
	// Ready is set once the initial configuration load has finished.
	Ready *atomic.Bool
}

type focusField int

const (
	focusPipeline focusField = iota
	focusPrompt
	focusModel
	focusVoice
	focusAPIKey
	focusSave
	focusToggle
	focusCount
)

type streamState int

const (
	streamConnecting streamState = iota
	streamConnected
	streamEnded
)

// Model is the bubbletea model of the console.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	backend Backend
	logs    logstream.Source
	models  ModelLister
	log     logr.Logger
	metrics *metrics.Recorder
	baseURL string
	ready   *atomic.Bool

	width    int
	height   int
	sized    bool
	quitting bool

	editor     console.Editor
	controller console.Controller
	buffer     console.LogBuffer
	stream     *logstream.Stream
	streamSt   streamState
	saving     bool
	listing    bool
	modelList  []string
	notice     *console.Notice
	modal      *console.Notice
	showHelp   bool
	logScroll  int
	focus      focusField
	prompt     textarea.Model
	modelInput textinput.Model
	voiceInput textinput.Model
	keyInput   textinput.Model

	// shown holds each widget's value as last set from the config. Widgets
	// sanitize what they are given, so edits are detected against this.
	shown inputValues
}

type inputValues struct {
	prompt, model, voice, key string
}

func newTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = promptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	return ti
}

// New builds the console model. The log channel and the configuration are
// requested when the program starts.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	prompt := textarea.New()
	prompt.Placeholder = "Instructions the agent follows..."
	prompt.ShowLineNumbers = false
	prompt.CharLimit = 0
	prompt.SetHeight(4)

	key := newTextInput("sk-...")
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'

	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	m := Model{
		ctx:        ctx,
		cancel:     cancel,
		backend:    opts.Backend,
		logs:       opts.Logs,
		models:     opts.Models,
		log:        log,
		metrics:    opts.Metrics,
		baseURL:    opts.BaseURL,
		ready:      opts.Ready,
		editor:     console.NewEditor(),
		controller: console.Controller{Status: console.StatusStopped},
		prompt:     prompt,
		modelInput: newTextInput(agentconfig.DefaultLLMModel),
		voiceInput: newTextInput(agentconfig.DefaultVoice),
		keyInput:   key,
	}
	m.syncInputs()
	m.recordStatus()
	return m
}

// Init issues the configuration fetch and opens the log channel. Neither
// waits for the other.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchConfigCmd(), m.openStreamCmd(), textarea.Blink)
}

// Close releases the log channel and cancels in-flight requests. It is safe
// to call after the program has already quit.
func (m Model) Close() {
	if m.stream != nil {
		_ = m.stream.Close()
	}
	m.cancel()
}

// Editor returns the configuration being edited.
func (m Model) Editor() console.Editor { return m.editor }

// Controller returns the agent run controller.
func (m Model) Controller() console.Controller { return m.controller }

// Buffer returns a copy of every received log line.
func (m Model) Buffer() []string { return m.buffer.Lines() }

// syncInputs copies the edited configuration into the input widgets.
func (m *Model) syncInputs() {
	cfg := m.editor.Config
	m.prompt.SetValue(cfg.SystemPrompt)
	m.modelInput.SetValue(cfg.LLMModel)
	m.voiceInput.SetValue(cfg.Voice)
	m.keyInput.SetValue(cfg.APIKey("openai"))
	m.markShown()
}

func (m *Model) markShown() {
	m.shown = inputValues{
		prompt: m.prompt.Value(),
		model:  m.modelInput.Value(),
		voice:  m.voiceInput.Value(),
		key:    m.keyInput.Value(),
	}
}

func (m *Model) apply(e console.Edit) {
	m.editor = m.editor.Apply(e)
}

func (m *Model) recordStatus() {
	m.metrics.SetAgentStatus(string(m.controller.Status), console.Statuses...)
}

func (m *Model) setNotice(n console.Notice) {
	m.notice = &n
}

func (m *Model) showModal(n console.Notice) {
	m.modal = &n
}

// setFocus moves focus to f, blurring every other input.
func (m *Model) setFocus(f focusField) tea.Cmd {
	m.focus = f
	m.prompt.Blur()
	m.modelInput.Blur()
	m.voiceInput.Blur()
	m.keyInput.Blur()
	switch f {
	case focusPrompt:
		return m.prompt.Focus()
	case focusModel:
		return m.modelInput.Focus()
	case focusVoice:
		return m.voiceInput.Focus()
	case focusAPIKey:
		return m.keyInput.Focus()
	}
	return nil
}

func (m Model) typing() bool {
	switch m.focus {
	case focusPrompt, focusModel, focusVoice, focusAPIKey:
		return true
	}
	return false
}

func (m *Model) layoutInputs() {
	w := m.width - 18
	if w < 20 {
		w = 20
	}
	m.prompt.SetWidth(w)
	m.modelInput.Width = w - 2
	m.voiceInput.Width = w - 2
	m.keyInput.Width = w - 2
}

func (m *Model) nextModel(models []string) {
	candidates := catalog.FilterFor(m.editor.Config.PipelineType, models)
	if len(candidates) == 0 {
		m.setNotice(console.Notice{Kind: console.NoticeInfo, Text: "No models available for this pipeline"})
		return
	}
	m.apply(console.EditModel{Value: catalog.NextModel(m.editor.Config.LLMModel, candidates)})
	m.modelInput.SetValue(m.editor.Config.LLMModel)
	m.markShown()
}
