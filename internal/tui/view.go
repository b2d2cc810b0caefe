package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexsjones/agentconsole/internal/console"
)

const (
	labelWidth     = 16
	promptHeight   = 4
	logPlaceholder = "Ready to start..."
)

var helpKeys = []struct{ key, desc string }{
	{"Tab / Shift+Tab", "Move between fields"},
	{"←/→", "Change pipeline (on the pipeline field)"},
	{"Ctrl+S", "Save configuration"},
	{"Ctrl+T", "Start or stop the agent"},
	{"Ctrl+L", "Next model for the selected pipeline"},
	{"Ctrl+O", "Next voice"},
	{"PgUp / PgDn", "Scroll the agent log"},
	{"End", "Follow the newest log lines"},
	{"F1 / ?", "This help"},
	{"q / Ctrl+C", "Quit"},
}

// fixed rows outside the log pane: header, section title, pipeline, prompt,
// model, voice, key, spacer, buttons, notice, status bar.
const fixedRows = 1 + 1 + 1 + promptHeight + 3 + 1 + 1 + 1 + 1

func (m Model) logHeight() int {
	h := m.height - fixedRows
	if h < 4 {
		h = 4
	}
	return h
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.sized {
		return "\n  Loading..."
	}

	var view strings.Builder
	view.WriteString(m.renderHeader())
	view.WriteString("\n")
	view.WriteString(m.renderSectionTitle("Configuration"))
	view.WriteString("\n")
	view.WriteString(m.renderEditor())
	view.WriteString("\n")
	view.WriteString(m.renderButtons())
	view.WriteString("\n")
	view.WriteString(m.renderNotice())
	view.WriteString("\n")
	view.WriteString(m.renderLog(m.logHeight()))
	view.WriteString(m.renderStatusBar())

	base := view.String()
	if m.modal != nil {
		return m.renderNoticeModal(base, *m.modal)
	}
	if m.showHelp {
		return m.renderHelp(base)
	}
	return base
}

func (m Model) renderHeader() string {
	logo := bannerStyle.Render(" Agent Console ")

	var conn string
	switch m.streamSt {
	case streamConnected:
		conn = successStyle.Render(" ●") + dimStyle.Render(" logs")
	case streamEnded:
		conn = errorStyle.Render(" ●") + dimStyle.Render(" logs")
	default:
		conn = pendingStyle.Render(" ○") + dimStyle.Render(" logs")
	}

	backend := ""
	if m.baseURL != "" {
		backend = dimStyle.Render(" │ ") + lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C2E7")).Render(m.baseURL)
	}

	agent := dimStyle.Render(" │ agent: ") + m.renderStatusWord()

	dirty := ""
	if m.editor.Dirty {
		dirty = dimStyle.Render(" │ ") + pendingStyle.Render("unsaved changes")
	}

	return fillLine(logo+conn+backend+agent+dirty, m.width, lipgloss.Color("#0F0F23"))
}

func (m Model) renderStatusWord() string {
	switch m.controller.Status {
	case console.StatusRunning:
		return successStyle.Render("running")
	case console.StatusPending:
		return pendingStyle.Render(fmt.Sprintf("pending (%s)", m.controller.Target))
	default:
		return dimStyle.Render("stopped")
	}
}

func (m Model) renderSectionTitle(name string) string {
	title := logBorderStyle.Render("─── " + name + " ")
	if w := lipgloss.Width(title); m.width > w {
		title += sepStyle.Render(strings.Repeat("─", m.width-w))
	}
	return title
}

func (m Model) label(text string, f focusField) string {
	style := labelStyle
	marker := "  "
	if m.focus == f {
		style = labelFocusedStyle
		marker = promptStyle.Render("▸ ")
	}
	return padRight(marker+style.Render(text), labelWidth)
}

func (m Model) renderEditor() string {
	cfg := m.editor.Config

	pipeline := valueStyle.Render(cfg.PipelineType.Label())
	if m.focus == focusPipeline {
		pipeline = promptStyle.Render("◀ ") + pipeline + promptStyle.Render(" ▶")
	} else {
		pipeline = "  " + pipeline
	}

	rows := []string{
		m.label("Pipeline", focusPipeline) + pipeline,
		lipgloss.JoinHorizontal(lipgloss.Top, m.label("System prompt", focusPrompt), m.prompt.View()),
		m.label("LLM model", focusModel) + m.modelInput.View(),
		m.label("Voice", focusVoice) + m.voiceInput.View(),
		m.label("OpenAI key", focusAPIKey) + m.keyInput.View(),
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderButtons() string {
	save := buttonStyle
	if m.focus == focusSave {
		save = buttonFocusedStyle
	}
	saveLabel := "Save Config"
	if m.saving {
		saveLabel = "Saving..."
	}

	// The control button follows the requested status, not the confirmed one.
	toggleLabel := "Start Agent"
	toggle := startButtonStyle
	if m.controller.Intent() == console.StatusRunning {
		toggleLabel = "Stop Agent"
		toggle = stopButtonStyle
	}
	if m.focus == focusToggle {
		toggle = toggle.Underline(true)
	}

	pending := ""
	if m.controller.Pending() {
		pending = pendingStyle.Render(" … waiting for backend")
	}

	marker := func(f focusField) string {
		if m.focus == f {
			return promptStyle.Render("▸")
		}
		return " "
	}

	return "\n" + strings.Repeat(" ", labelWidth-1) +
		marker(focusSave) + save.Render(saveLabel) + "  " +
		marker(focusToggle) + toggle.Render(toggleLabel) + pending
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	return " " + noticeStyle(m.notice.Kind).Render(m.notice.Text)
}

func noticeStyle(k console.NoticeKind) lipgloss.Style {
	switch k {
	case console.NoticeError:
		return errorStyle
	case console.NoticeSuccess:
		return successStyle
	default:
		return dimStyle
	}
}

func (m Model) renderLog(logH int) string {
	var b strings.Builder
	title := "Agent Logs"
	if m.buffer.Len() > 0 {
		title += fmt.Sprintf(" (%d)", m.buffer.Len())
	}
	if m.logScroll > 0 {
		title += fmt.Sprintf(" [-%d]", m.logScroll)
	}
	b.WriteString(m.renderSectionTitle(title))
	b.WriteString("\n")

	rows := logH - 1
	maxW := m.width - 1
	if maxW < 10 {
		maxW = 10
	}

	var visible []string
	if m.buffer.Len() == 0 {
		visible = []string{dimStyle.Render(logPlaceholder)}
	} else {
		visible = m.buffer.Window(rows, m.logScroll)
	}
	for i := 0; i < rows; i++ {
		if i < len(visible) {
			line := sanitizeLine(visible[i])
			if lipgloss.Width(line) > maxW {
				line = ansiTruncate(line, maxW)
			}
			b.WriteString(" " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStatusBar() string {
	var keys []string
	switch {
	case m.modal != nil:
		keys = []string{"any", "dismiss"}
	case m.showHelp:
		keys = []string{"any", "close help"}
	default:
		keys = []string{
			"Tab", "next field",
			"^S", "save",
			"^T", "start/stop",
			"^L", "model",
			"^O", "voice",
			"PgUp/PgDn", "scroll",
			"F1", "help",
			"^C", "quit",
		}
	}

	var sb strings.Builder
	for i := 0; i < len(keys)-1; i += 2 {
		entry := statusKeyStyle.Render(" "+keys[i]+" ") + statusBarStyle.Render(keys[i+1]+" ")
		if lipgloss.Width(sb.String()+entry) > m.width {
			break
		}
		sb.WriteString(entry)
	}
	return fillLine(sb.String(), m.width, lipgloss.Color("#181825"))
}

func (m Model) renderNoticeModal(base string, n console.Notice) string {
	var content strings.Builder
	switch n.Kind {
	case console.NoticeSuccess:
		content.WriteString(successStyle.Render("  ✔  " + n.Text))
	case console.NoticeError:
		content.WriteString(errorStyle.Render("  ✖  " + n.Text))
	default:
		content.WriteString(modalTitleStyle.Render("  " + n.Text))
	}
	content.WriteString("\n\n")
	content.WriteString(dimStyle.Render("  Press any key to dismiss"))
	return overlay(base, modalBorderStyle.Render(content.String()), m.width)
}

func (m Model) renderHelp(base string) string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("  ⌨  Keys"))
	content.WriteString("\n\n")
	for _, k := range helpKeys {
		content.WriteString(fmt.Sprintf("  %s %s\n",
			padRight(modalKeyStyle.Render(k.key), 18),
			modalDescStyle.Render(k.desc)))
	}
	content.WriteString("\n")
	content.WriteString(dimStyle.Render("  Press any key to dismiss"))
	return overlay(base, modalBorderStyle.Render(content.String()), m.width)
}
