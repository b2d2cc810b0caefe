package console

import "github.com/alexsjones/agentconsole/internal/agentconfig"

// Edit is a single field change made in the configuration editor.
type Edit interface {
	apply(agentconfig.Config) agentconfig.Config
}

// EditSystemPrompt replaces the system prompt.
type EditSystemPrompt struct{ Value string }

// EditPipeline replaces the pipeline type.
type EditPipeline struct{ Value agentconfig.PipelineType }

// EditModel replaces the LLM model identifier.
type EditModel struct{ Value string }

// EditVoice replaces the voice identifier.
type EditVoice struct{ Value string }

// EditAPIKey sets the secret key of one provider.
type EditAPIKey struct {
	Provider string
	Value    string
}

func (e EditSystemPrompt) apply(c agentconfig.Config) agentconfig.Config {
	return c.SetSystemPrompt(e.Value)
}

func (e EditPipeline) apply(c agentconfig.Config) agentconfig.Config {
	return c.SetPipelineType(e.Value)
}

func (e EditModel) apply(c agentconfig.Config) agentconfig.Config { return c.SetLLMModel(e.Value) }

func (e EditVoice) apply(c agentconfig.Config) agentconfig.Config { return c.SetVoice(e.Value) }

func (e EditAPIKey) apply(c agentconfig.Config) agentconfig.Config {
	return c.SetAPIKey(e.Provider, e.Value)
}

// Editor is the locally edited configuration. Loaded reports whether a
// backend document has been merged in; Dirty reports edits since the last
// load or save.
type Editor struct {
	Config agentconfig.Config
	Loaded bool
	Dirty  bool
}

// NewEditor starts from the hardcoded defaults.
func NewEditor() Editor {
	return Editor{Config: agentconfig.Default()}
}

// Apply returns the editor with e applied. The previous Config is not
// modified.
func (ed Editor) Apply(e Edit) Editor {
	if e == nil {
		return ed
	}
	return Editor{Config: e.apply(ed.Config), Loaded: ed.Loaded, Dirty: true}
}

// Load merges a backend configuration document over the current record.
// On a malformed document the editor is returned unchanged with the error.
func (ed Editor) Load(raw []byte) (Editor, error) {
	cfg, err := agentconfig.Merge(ed.Config, raw)
	if err != nil {
		return ed, err
	}
	return Editor{Config: cfg, Loaded: true, Dirty: ed.Dirty}, nil
}

// Saved marks the current record as persisted.
func (ed Editor) Saved() Editor {
	ed.Dirty = false
	return ed
}
