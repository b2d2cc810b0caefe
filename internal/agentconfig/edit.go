package agentconfig

import "maps"

// SetSystemPrompt returns c with the instruction text replaced.
func (c Config) SetSystemPrompt(v string) Config {
	c.SystemPrompt = v
	return c
}

// SetPipelineType returns c with the pipeline selector replaced.
func (c Config) SetPipelineType(v PipelineType) Config {
	c.PipelineType = v
	return c
}

// SetLLMModel returns c with the model identifier replaced.
func (c Config) SetLLMModel(v string) Config {
	c.LLMModel = v
	return c
}

// SetVoice returns c with the voice identifier replaced.
func (c Config) SetVoice(v string) Config {
	c.Voice = v
	return c
}

// SetAPIKey returns c with the secret for provider replaced. The secret map
// is copied; the receiver's map is never written.
func (c Config) SetAPIKey(provider, v string) Config {
	keys := maps.Clone(c.APIKeys)
	if keys == nil {
		keys = map[string]string{}
	}
	keys[provider] = v
	c.APIKeys = keys
	c.ensureProviders()
	return c
}
