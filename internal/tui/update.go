package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/catalog"
	"github.com/alexsjones/agentconsole/internal/console"
	"github.com/alexsjones/agentconsole/internal/logstream"
)

type configLoadedMsg struct {
	raw []byte
	err error
}

type streamOpenedMsg struct {
	stream *logstream.Stream
	err    error
}

type logLineMsg struct {
	line string
}

type streamEndedMsg struct {
	err error
}

type savedMsg struct {
	err error
}

type controlDoneMsg struct {
	action console.Action
	result agentclient.ControlResult
	err    error
}

type modelsMsg struct {
	models []string
	err    error
}

func (m Model) fetchConfigCmd() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		raw, err := backend.GetConfig(ctx)
		return configLoadedMsg{raw: raw, err: err}
	}
}

func (m Model) openStreamCmd() tea.Cmd {
	ctx, src := m.ctx, m.logs
	return func() tea.Msg {
		if src == nil {
			return streamOpenedMsg{err: errors.New("no log source configured")}
		}
		s, err := src.Open(ctx)
		return streamOpenedMsg{stream: s, err: err}
	}
}

// waitForLine delivers the next line of s, or its end.
func waitForLine(s *logstream.Stream) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-s.Lines()
		if !ok {
			return streamEndedMsg{err: s.Err()}
		}
		return logLineMsg{line: line}
	}
}

func (m Model) saveCmd() tea.Cmd {
	ctx, backend, cfg := m.ctx, m.backend, m.editor.Config.Clone()
	return func() tea.Msg {
		return savedMsg{err: backend.SaveConfig(ctx, cfg)}
	}
}

func (m Model) controlCmd(action console.Action) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		var (
			res agentclient.ControlResult
			err error
		)
		if action == console.ActionStart {
			res, err = backend.Start(ctx)
		} else {
			res, err = backend.Stop(ctx)
		}
		return controlDoneMsg{action: action, result: res, err: err}
	}
}

func (m Model) listModelsCmd() tea.Cmd {
	ctx, lister, key := m.ctx, m.models, m.editor.Config.APIKey("openai")
	return func() tea.Msg {
		models, err := lister.List(ctx, key)
		return modelsMsg{models: models, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sized = true
		m.layoutInputs()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case configLoadedMsg:
		if m.ready != nil {
			m.ready.Store(true)
		}
		if msg.err != nil {
			m.log.Error(msg.err, "Loading configuration failed, keeping defaults")
			m.setNotice(console.LoadFailed(msg.err))
			return m, nil
		}
		ed, err := m.editor.Load(msg.raw)
		if err != nil {
			m.log.Error(err, "Backend returned a malformed configuration")
			m.setNotice(console.LoadFailed(err))
			return m, nil
		}
		m.editor = ed
		m.syncInputs()
		m.log.Info("Configuration loaded", "pipeline", ed.Config.PipelineType)
		return m, nil

	case streamOpenedMsg:
		if msg.err != nil {
			m.streamSt = streamEnded
			m.log.Error(msg.err, "Opening log channel failed")
			m.setNotice(console.Notice{Kind: console.NoticeError, Text: "Log channel unavailable: " + console.Describe(msg.err)})
			return m, nil
		}
		if m.quitting {
			_ = msg.stream.Close()
			return m, nil
		}
		m.stream = msg.stream
		m.streamSt = streamConnected
		return m, waitForLine(m.stream)

	case logLineMsg:
		m.buffer.Append(msg.line)
		if m.logScroll > 0 {
			// Keep the scrolled window anchored on the same lines.
			m.logScroll++
		}
		return m, waitForLine(m.stream)

	case streamEndedMsg:
		m.streamSt = streamEnded
		if msg.err != nil {
			m.log.Error(msg.err, "Log channel ended")
		}
		if !m.quitting {
			m.setNotice(console.StreamEnded(msg.err))
		}
		return m, nil

	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.log.Error(msg.err, "Saving configuration failed")
			m.showModal(console.SaveFailed(msg.err))
			return m, nil
		}
		m.editor = m.editor.Saved()
		m.log.Info("Configuration saved")
		m.showModal(console.SaveSucceeded())
		return m, nil

	case controlDoneMsg:
		if msg.err != nil {
			m.controller = m.controller.Fail(msg.err)
			m.log.Error(msg.err, "Agent control request failed", "action", msg.action.String())
			m.setNotice(console.ControlFailed(msg.action, msg.err))
		} else {
			m.controller = m.controller.Confirm(msg.result)
			m.log.Info("Agent control request completed", "action", msg.action.String(), "status", msg.result.Status)
			m.setNotice(console.Notice{Kind: console.NoticeSuccess, Text: fmt.Sprintf("Agent %s", m.controller.Status)})
		}
		m.recordStatus()
		return m, nil

	case modelsMsg:
		m.listing = false
		if msg.err != nil {
			m.setNotice(console.Notice{Kind: console.NoticeError, Text: "Listing models failed: " + msg.err.Error()})
			return m, nil
		}
		m.modelList = msg.models
		m.nextModel(m.modelList)
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m.quit()
	}
	if m.modal != nil {
		m.modal = nil
		return m, nil
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch key {
	case "tab":
		return m, m.setFocus((m.focus + 1) % focusCount)
	case "shift+tab":
		return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
	case "ctrl+s":
		return m.save()
	case "ctrl+t":
		return m.toggle()
	case "ctrl+l":
		return m.pickModel()
	case "ctrl+o":
		m.apply(console.EditVoice{Value: catalog.NextVoice(m.editor.Config.Voice)})
		m.voiceInput.SetValue(m.editor.Config.Voice)
		m.markShown()
		return m, nil
	case "pgup":
		m.logScroll += m.logHeight() - 1
		if maxScroll := m.buffer.Len() - 1; m.logScroll > maxScroll {
			m.logScroll = max(maxScroll, 0)
		}
		return m, nil
	case "pgdown":
		m.logScroll = max(m.logScroll-(m.logHeight()-1), 0)
		return m, nil
	case "end":
		if !m.typing() {
			m.logScroll = 0
			return m, nil
		}
	case "f1":
		m.showHelp = true
		return m, nil
	}

	if !m.typing() {
		switch key {
		case "q", "esc":
			return m.quit()
		case "?":
			m.showHelp = true
			return m, nil
		}
	}

	switch m.focus {
	case focusPipeline:
		switch key {
		case "left", "h":
			m.apply(console.EditPipeline{Value: m.editor.Config.PipelineType.Prev()})
		case "right", "l", "enter", " ":
			m.apply(console.EditPipeline{Value: m.editor.Config.PipelineType.Next()})
		}
		return m, nil
	case focusSave:
		if key == "enter" || key == " " {
			return m.save()
		}
		return m, nil
	case focusToggle:
		if key == "enter" || key == " " {
			return m.toggle()
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// updateFocused forwards msg to the focused input and writes the value
// through the editor only when the widget's content actually changed.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusPrompt:
		m.prompt, cmd = m.prompt.Update(msg)
		if v := m.prompt.Value(); v != m.shown.prompt {
			m.shown.prompt = v
			m.apply(console.EditSystemPrompt{Value: v})
		}
	case focusModel:
		m.modelInput, cmd = m.modelInput.Update(msg)
		if v := m.modelInput.Value(); v != m.shown.model {
			m.shown.model = v
			m.apply(console.EditModel{Value: v})
		}
	case focusVoice:
		m.voiceInput, cmd = m.voiceInput.Update(msg)
		if v := m.voiceInput.Value(); v != m.shown.voice {
			m.shown.voice = v
			m.apply(console.EditVoice{Value: v})
		}
	case focusAPIKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
		if v := m.keyInput.Value(); v != m.shown.key {
			m.shown.key = v
			m.apply(console.EditAPIKey{Provider: "openai", Value: v})
		}
	}
	return m, cmd
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	m.saving = true
	return m, m.saveCmd()
}

func (m Model) toggle() (tea.Model, tea.Cmd) {
	next, action, ok := m.controller.Toggle()
	if !ok {
		m.setNotice(console.Notice{Kind: console.NoticeInfo, Text: "A start/stop request is already in flight"})
		return m, nil
	}
	m.controller = next
	m.recordStatus()
	return m, m.controlCmd(action)
}

func (m Model) pickModel() (tea.Model, tea.Cmd) {
	if len(m.modelList) > 0 {
		m.nextModel(m.modelList)
		return m, nil
	}
	if m.models == nil {
		m.nextModel([]string{catalog.DefaultModelFor(m.editor.Config.PipelineType)})
		return m, nil
	}
	if m.listing {
		return m, nil
	}
	m.listing = true
	m.setNotice(console.Notice{Kind: console.NoticeInfo, Text: "Listing models..."})
	return m, m.listModelsCmd()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Close()
	return m, tea.Quit
}
