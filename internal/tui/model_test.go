package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/alexsjones/agentconsole/internal/agentclient"
	"github.com/alexsjones/agentconsole/internal/agentconfig"
	"github.com/alexsjones/agentconsole/internal/console"
	"github.com/alexsjones/agentconsole/internal/logstream"
)

type fakeBackend struct {
	mu       sync.Mutex
	raw      string
	getErr   error
	saveErr  error
	ctrlErr  error
	ctrlResp string
	saved    []agentconfig.Config
	calls    []string
}

func (f *fakeBackend) GetConfig(context.Context) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return []byte(f.raw), nil
}

func (f *fakeBackend) SaveConfig(_ context.Context, cfg agentconfig.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "save")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cfg)
	return nil
}

func (f *fakeBackend) Start(context.Context) (agentclient.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	return agentclient.ControlResult{Status: f.ctrlResp}, f.ctrlErr
}

func (f *fakeBackend) Stop(context.Context) (agentclient.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	return agentclient.ControlResult{Status: f.ctrlResp}, f.ctrlErr
}

type fakeLister struct {
	models []string
	err    error
	keys   []string
}

func (f *fakeLister) List(_ context.Context, apiKey string) ([]string, error) {
	f.keys = append(f.keys, apiKey)
	return f.models, f.err
}

func newTestModel(t *testing.T, b *fakeBackend, opts ...func(*Options)) Model {
	t.Helper()
	o := Options{Backend: b, BaseURL: "http://localhost:8000"}
	for _, fn := range opts {
		fn(&o)
	}
	m := New(o)
	t.Cleanup(m.Close)
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(m, cmd())
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestInitialView(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	view := m.View()
	for _, want := range []string{"Start Agent", "Save Config", "Ready to start...", "Realtime (OpenAI)", "http://localhost:8000"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Stop Agent") {
		t.Error("fresh console should not offer Stop Agent")
	}
}

func TestViewBeforeSize(t *testing.T) {
	m := New(Options{Backend: &fakeBackend{}})
	defer m.Close()
	if !strings.Contains(m.View(), "Loading") {
		t.Errorf("View before size = %q", m.View())
	}
}

func TestConfigLoadMergesOverDefaults(t *testing.T) {
	b := &fakeBackend{raw: `{"pipeline_type":"cascading","voice":"echo","api_keys":{"openai":"sk-x"}}`}
	m := newTestModel(t, b)
	m, _ = run(t, m, m.fetchConfigCmd())

	cfg := m.Editor().Config
	if cfg.PipelineType != agentconfig.PipelineCascading || cfg.Voice != "echo" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.LLMModel != agentconfig.DefaultLLMModel {
		t.Errorf("absent field lost its default: %q", cfg.LLMModel)
	}
	if !m.Editor().Loaded || m.Editor().Dirty {
		t.Errorf("editor flags = %+v", m.Editor())
	}
	if m.voiceInput.Value() != "echo" || m.keyInput.Value() != "sk-x" {
		t.Error("inputs not synced with loaded config")
	}
	if !strings.Contains(m.View(), "Cascading (STT+LLM+TTS)") {
		t.Error("view does not show the loaded pipeline")
	}
}

func TestConfigLoadFailureKeepsDefaults(t *testing.T) {
	tests := []struct {
		name string
		b    *fakeBackend
	}{
		{"unreachable", &fakeBackend{getErr: agentclient.ErrUnreachable}},
		{"malformed", &fakeBackend{raw: `{"voice":`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, tt.b)
			m, _ = run(t, m, m.fetchConfigCmd())
			if !agentconfig.Equal(m.Editor().Config, agentconfig.Default()) {
				t.Errorf("config changed: %+v", m.Editor().Config)
			}
			if !strings.Contains(m.View(), "Could not load configuration") {
				t.Error("missing load failure notice")
			}
		})
	}
}

func TestSaveShowsAcknowledgment(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(t, b)

	m, _ = update(m, key(tea.KeyRight)) // pipeline -> cascading
	m, cmd := update(m, key(tea.KeyCtrlS))
	if !strings.Contains(m.View(), "Saving...") {
		t.Error("expected saving indicator")
	}
	m, _ = run(t, m, cmd)

	if !strings.Contains(m.View(), "Configuration saved!") {
		t.Fatal("missing saved acknowledgment")
	}
	if len(b.saved) != 1 || b.saved[0].PipelineType != agentconfig.PipelineCascading {
		t.Fatalf("saved = %+v", b.saved)
	}
	if m.Editor().Dirty {
		t.Error("editor still dirty after save")
	}

	m, _ = update(m, runes("x"))
	if strings.Contains(m.View(), "Configuration saved!") {
		t.Error("acknowledgment not dismissed by a key")
	}
}

func TestSaveFailureShowsError(t *testing.T) {
	b := &fakeBackend{saveErr: &agentclient.StatusError{Op: agentclient.OpSaveConfig, StatusCode: 500, Body: "disk full"}}
	m := newTestModel(t, b)

	m, cmd := update(m, key(tea.KeyCtrlS))
	m, _ = run(t, m, cmd)

	view := m.View()
	if strings.Contains(view, "Configuration saved!") {
		t.Error("failure must not be acknowledged as success")
	}
	if !strings.Contains(view, "Save failed") || !strings.Contains(view, "disk full") {
		t.Errorf("missing failure modal:\n%s", view)
	}
}

func TestToggleFlipsLabelBeforeResponse(t *testing.T) {
	b := &fakeBackend{ctrlErr: errors.New("connection refused")}
	m := newTestModel(t, b)

	m, cmd := update(m, key(tea.KeyCtrlT))
	if !strings.Contains(m.View(), "Stop Agent") {
		t.Fatal("label did not flip immediately")
	}
	if cmd == nil {
		t.Fatal("expected a start request")
	}

	// A second toggle while pending issues nothing.
	m, dup := update(m, key(tea.KeyCtrlT))
	if dup != nil {
		t.Error("duplicate request issued while pending")
	}

	m, _ = run(t, m, cmd)
	view := m.View()
	if !strings.Contains(view, "Start Agent") {
		t.Error("label did not revert after failure")
	}
	if !strings.Contains(view, "Could not start agent") {
		t.Error("missing failure notice")
	}
	if len(b.calls) != 1 || b.calls[0] != "start" {
		t.Errorf("calls = %v", b.calls)
	}
}

func TestToggleTwiceReturnsToStopped(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(t, b)

	m, cmd := update(m, key(tea.KeyCtrlT))
	m, _ = run(t, m, cmd)
	if m.Controller().Status != console.StatusRunning {
		t.Fatalf("status = %s", m.Controller().Status)
	}
	m, cmd = update(m, key(tea.KeyCtrlT))
	m, _ = run(t, m, cmd)
	if m.Controller().Status != console.StatusStopped {
		t.Fatalf("status = %s", m.Controller().Status)
	}
	if strings.Join(b.calls, ",") != "start,stop" {
		t.Errorf("calls = %v", b.calls)
	}
}

func TestAlreadyRunningReconciles(t *testing.T) {
	b := &fakeBackend{ctrlResp: agentclient.StatusAlreadyRunning}
	m := newTestModel(t, b)
	m, cmd := update(m, key(tea.KeyCtrlT))
	m, _ = run(t, m, cmd)
	if m.Controller().Status != console.StatusRunning || !strings.Contains(m.View(), "Stop Agent") {
		t.Errorf("status = %s", m.Controller().Status)
	}
}

func TestLogLinesRenderInArrivalOrder(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	for _, l := range []string{"alpha", "bravo", "charlie"} {
		m, _ = update(m, logLineMsg{line: l})
	}
	view := m.View()
	if strings.Contains(view, "Ready to start...") {
		t.Error("placeholder shown with lines buffered")
	}
	a, b, c := strings.Index(view, "alpha"), strings.Index(view, "bravo"), strings.Index(view, "charlie")
	if a < 0 || !(a < b && b < c) {
		t.Errorf("lines out of order (%d %d %d)", a, b, c)
	}
	if got := strings.Join(m.Buffer(), ","); got != "alpha,bravo,charlie" {
		t.Errorf("buffer = %q", got)
	}
}

func TestLogScroll(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	for i := 0; i < 100; i++ {
		m, _ = update(m, logLineMsg{line: "line-" + strings.Repeat("x", i%3) + string(rune('A'+i%26))})
	}
	m, _ = update(m, logLineMsg{line: "newest"})
	if !strings.Contains(m.View(), "newest") {
		t.Fatal("tail not followed")
	}
	m, _ = update(m, key(tea.KeyPgUp))
	if strings.Contains(m.View(), "newest") {
		t.Error("scrolled view still shows the newest line")
	}
	m, _ = update(m, key(tea.KeyPgDown))
	if !strings.Contains(m.View(), "newest") {
		t.Error("scrolling back down did not return to the tail")
	}
}

func TestStreamEndKeepsBuffer(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m, _ = update(m, logLineMsg{line: "before"})
	m, cmd := update(m, streamEndedMsg{err: logstream.ErrDisconnected})
	if cmd != nil {
		t.Error("stream end should not reconnect")
	}
	view := m.View()
	if !strings.Contains(view, "Log channel disconnected") || !strings.Contains(view, "before") {
		t.Errorf("view after disconnect:\n%s", view)
	}
}

func TestStreamOpenFailure(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m, cmd := run(t, m, m.openStreamCmd())
	if cmd != nil {
		t.Error("unexpected command after failed open")
	}
	if !strings.Contains(m.View(), "Log channel unavailable") {
		t.Error("missing stream failure notice")
	}
}

func TestEditsWriteThroughEditor(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})

	// pipeline -> prompt -> model -> voice -> key
	for range 4 {
		m, _ = update(m, key(tea.KeyTab))
	}
	if m.focus != focusAPIKey {
		t.Fatalf("focus = %d", m.focus)
	}
	m, _ = update(m, runes("sk-1"))
	if got := m.Editor().Config.APIKey("openai"); got != "sk-1" {
		t.Errorf("api key = %q", got)
	}
	if !m.Editor().Dirty {
		t.Error("edit did not mark the editor dirty")
	}
	if strings.Contains(m.View(), "sk-1") {
		t.Error("api key echoed in clear text")
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focus != focusPrompt {
		t.Fatalf("focus = %d", m.focus)
	}
	m, _ = update(m, runes("Be brief."))
	if got := m.Editor().Config.SystemPrompt; got != "Be brief." {
		t.Errorf("system prompt = %q", got)
	}
}

func TestNavigationWithoutEditsKeepsConfig(t *testing.T) {
	prompt := strings.Repeat("rule\tline\r\n", 150)
	model := strings.Repeat("m", 300)
	raw := `{"system_prompt":` + strconv.Quote(prompt) + `,"llm_model":"` + model +
		`","voice":"alloy\tbright","api_keys":{"openai":"sk-\tkey"}}`
	m := newTestModel(t, &fakeBackend{raw: raw})
	m, _ = run(t, m, m.fetchConfigCmd())
	loaded := m.Editor().Config.Clone()

	for range 4 {
		m, _ = update(m, key(tea.KeyTab))
		m, _ = update(m, key(tea.KeyRight))
		m, _ = update(m, key(tea.KeyLeft))
		m, _ = update(m, key(tea.KeyEnd))
	}
	if m.Editor().Dirty {
		t.Error("moving through fields marked the editor dirty")
	}
	if !agentconfig.Equal(m.Editor().Config, loaded) {
		t.Errorf("moving through fields rewrote the config: prompt=%q model len=%d",
			m.Editor().Config.SystemPrompt[:20], len(m.Editor().Config.LLMModel))
	}

	// pipeline -> prompt -> model
	for m.focus != focusModel {
		m, _ = update(m, key(tea.KeyTab))
	}
	m, _ = update(m, runes("x"))
	if got := m.Editor().Config.LLMModel; got != model+"x" {
		t.Errorf("model len = %d, want %d", len(got), len(model)+1)
	}
}

func TestTabCyclesThroughButtons(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(t, b)
	for range int(focusToggle) {
		m, _ = update(m, key(tea.KeyTab))
	}
	m, cmd := update(m, key(tea.KeyEnter))
	m, _ = run(t, m, cmd)
	if m.Controller().Status != console.StatusRunning {
		t.Errorf("enter on control button: status = %s", m.Controller().Status)
	}
	m, _ = update(m, key(tea.KeyTab))
	if m.focus != focusPipeline {
		t.Errorf("focus did not wrap: %d", m.focus)
	}
}

func TestVoicePicker(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m, _ = update(m, key(tea.KeyCtrlO))
	if got := m.Editor().Config.Voice; got != "ash" {
		t.Errorf("voice = %q", got)
	}
	if m.voiceInput.Value() != "ash" {
		t.Error("voice input not updated")
	}
}

func TestModelPicker(t *testing.T) {
	lister := &fakeLister{models: []string{"gpt-4o", "gpt-4o-realtime-preview", "gpt-realtime"}}
	m := newTestModel(t, &fakeBackend{raw: `{"api_keys":{"openai":"sk-live"}}`}, func(o *Options) { o.Models = lister })
	m, _ = run(t, m, m.fetchConfigCmd())

	m, cmd := update(m, key(tea.KeyCtrlL))
	m, _ = run(t, m, cmd)
	if got := m.Editor().Config.LLMModel; got != "gpt-realtime" {
		t.Errorf("model = %q", got)
	}
	if len(lister.keys) != 1 || lister.keys[0] != "sk-live" {
		t.Errorf("lister keys = %v", lister.keys)
	}

	// Cached list, no second request.
	m, cmd = update(m, key(tea.KeyCtrlL))
	if cmd != nil {
		t.Error("catalog listed twice")
	}
	if got := m.Editor().Config.LLMModel; got != "gpt-4o-realtime-preview" {
		t.Errorf("model after cycling = %q", got)
	}
}

func TestHelpOverlay(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m, _ = update(m, runes("?"))
	if !strings.Contains(m.View(), "Save configuration") {
		t.Fatal("help not shown")
	}
	m, _ = update(m, runes("x"))
	if strings.Contains(m.View(), "Save configuration") {
		t.Error("help not dismissed")
	}
}

func TestEndToEndLogChannelAndQuit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("agent booted"))
		<-release
	}))
	defer ts.Close()
	defer close(release)

	logsURL, err := agentclient.LogsURL(ts.URL, "/logs")
	if err != nil {
		t.Fatal(err)
	}
	m := newTestModel(t, &fakeBackend{}, func(o *Options) {
		o.Logs = &logstream.WebSocketSource{URL: logsURL}
	})

	m, wait := run(t, m, m.openStreamCmd())
	m, _ = run(t, m, wait)
	if !strings.Contains(m.View(), "agent booted") {
		t.Fatal("line from the log channel not rendered")
	}

	stream := m.stream
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
	select {
	case _, ok := <-stream.Lines():
		if ok {
			t.Error("unexpected line after quit")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed on quit")
	}
	if m.View() != "" {
		t.Error("view not cleared on quit")
	}
}
