// Package agentconfig defines the agent configuration record edited by the
// console, its hardcoded defaults, the shallow merge applied to documents
// returned by the backend, and pure per-field edit reducers.
package agentconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// PipelineType selects the backend processing mode.
type PipelineType string

const (
	// PipelineRealtime is the integrated realtime speech pipeline.
	PipelineRealtime PipelineType = "realtime"
	// PipelineCascading chains speech-to-text, an LLM and text-to-speech.
	PipelineCascading PipelineType = "cascading"
)

// PipelineTypes lists the selector options in display order.
var PipelineTypes = []PipelineType{PipelineRealtime, PipelineCascading}

// Next returns the selector option after p, wrapping around. Values the
// selector does not know cycle back to the first option.
func (p PipelineType) Next() PipelineType {
	for i, t := range PipelineTypes {
		if t == p {
			return PipelineTypes[(i+1)%len(PipelineTypes)]
		}
	}
	return PipelineTypes[0]
}

// Prev returns the selector option before p, wrapping around.
func (p PipelineType) Prev() PipelineType {
	for i, t := range PipelineTypes {
		if t == p {
			return PipelineTypes[(i+len(PipelineTypes)-1)%len(PipelineTypes)]
		}
	}
	return PipelineTypes[0]
}

// Label is the human readable selector text.
func (p PipelineType) Label() string {
	switch p {
	case PipelineRealtime:
		return "Realtime (OpenAI)"
	case PipelineCascading:
		return "Cascading (STT+LLM+TTS)"
	default:
		return string(p)
	}
}

// Field names as they appear on the wire.
const (
	FieldSystemPrompt = "system_prompt"
	FieldPipelineType = "pipeline_type"
	FieldLLMModel     = "llm_model"
	FieldVoice        = "voice"
	FieldAPIKeys      = "api_keys"
)

// Default values used before the backend document arrives.
const (
	DefaultLLMModel = "gpt-4o-realtime-preview"
	DefaultVoice    = "alloy"
)

// RenderedProviders are the secret keys the console renders controls for.
// They are always present in Config.APIKeys.
var RenderedProviders = []string{"openai"}

// Config is the agent configuration record.
type Config struct {
	SystemPrompt string
	PipelineType PipelineType
	LLMModel     string
	Voice        string
	APIKeys      map[string]string

	// Extra holds top-level fields the console does not know about. They are
	// preserved across merges and sent back on save.
	Extra map[string]json.RawMessage
}

// Default returns the hardcoded configuration used at mount.
func Default() Config {
	c := Config{
		SystemPrompt: "",
		PipelineType: PipelineRealtime,
		LLMModel:     DefaultLLMModel,
		Voice:        DefaultVoice,
		APIKeys:      map[string]string{},
	}
	c.ensureProviders()
	return c
}

func (c *Config) ensureProviders() {
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	for _, p := range RenderedProviders {
		if _, ok := c.APIKeys[p]; !ok {
			c.APIKeys[p] = ""
		}
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.APIKeys = maps.Clone(c.APIKeys)
	if c.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	out.ensureProviders()
	return out
}

// APIKey returns the secret stored for provider, or "".
func (c Config) APIKey(provider string) string {
	return c.APIKeys[provider]
}

// Merge overwrites base with every top-level field present in raw. Fields
// absent from raw, or present as JSON null, keep the base value. api_keys is
// replaced as a whole and then topped up with the rendered provider keys.
// Unknown fields are kept in Extra. On error base is returned unchanged.
func Merge(base Config, raw []byte) (Config, error) {
	out := base.Clone()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return out, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return base, fmt.Errorf("decoding configuration: %w", err)
	}

	for key, value := range doc {
		if isNull(value) {
			continue
		}
		var err error
		switch key {
		case FieldSystemPrompt:
			err = json.Unmarshal(value, &out.SystemPrompt)
		case FieldPipelineType:
			var s string
			err = json.Unmarshal(value, &s)
			out.PipelineType = PipelineType(s)
		case FieldLLMModel:
			err = json.Unmarshal(value, &out.LLMModel)
		case FieldVoice:
			err = json.Unmarshal(value, &out.Voice)
		case FieldAPIKeys:
			keys := map[string]*string{}
			err = json.Unmarshal(value, &keys)
			if err == nil {
				out.APIKeys = make(map[string]string, len(keys))
				for k, v := range keys {
					if v != nil {
						out.APIKeys[k] = *v
					} else {
						out.APIKeys[k] = ""
					}
				}
			}
		default:
			if out.Extra == nil {
				out.Extra = map[string]json.RawMessage{}
			}
			out.Extra[key] = append(json.RawMessage(nil), value...)
		}
		if err != nil {
			return base, fmt.Errorf("decoding configuration field %q: %w", key, err)
		}
	}

	out.ensureProviders()
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// MarshalJSON emits the known fields followed by every extra field.
func (c Config) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, 5+len(c.Extra))
	for k, v := range c.Extra {
		doc[k] = v
	}
	keys := maps.Clone(c.APIKeys)
	if keys == nil {
		keys = map[string]string{}
	}
	doc[FieldSystemPrompt] = c.SystemPrompt
	doc[FieldPipelineType] = string(c.PipelineType)
	doc[FieldLLMModel] = c.LLMModel
	doc[FieldVoice] = c.Voice
	doc[FieldAPIKeys] = keys
	return json.Marshal(doc)
}

// UnmarshalJSON merges data over the defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	merged, err := Merge(Default(), data)
	if err != nil {
		return err
	}
	*c = merged
	return nil
}

// Equal reports whether a and b describe the same configuration.
func Equal(a, b Config) bool {
	if a.SystemPrompt != b.SystemPrompt || a.PipelineType != b.PipelineType ||
		a.LLMModel != b.LLMModel || a.Voice != b.Voice {
		return false
	}
	if !maps.Equal(a.APIKeys, b.APIKeys) {
		return false
	}
	if len(a.Extra) != len(b.Extra) {
		return false
	}
	for k, av := range a.Extra {
		bv, ok := b.Extra[k]
		if !ok || !jsonEqual(av, bv) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// Providers returns the secret map keys in a stable order, rendered
// providers first.
func (c Config) Providers() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(c.APIKeys))
	for _, p := range RenderedProviders {
		out = append(out, p)
		seen[p] = true
	}
	var rest []string
	for k := range c.APIKeys {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
