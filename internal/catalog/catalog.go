// Package catalog knows which models and voices the agent's pipelines can
// use. Voices are a fixed list; models are listed from the OpenAI API.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"

	"github.com/alexsjones/agentconsole/internal/agentconfig"
)

// Voices are the speech voices accepted by both pipelines.
var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// DefaultModelFor returns the model a pipeline falls back to.
func DefaultModelFor(p agentconfig.PipelineType) string {
	if p == agentconfig.PipelineCascading {
		return "gpt-4o"
	}
	return agentconfig.DefaultLLMModel
}

// chatExcludes marks model ids that cannot drive a chat step.
var chatExcludes = []string{
	"embed", "tts", "whisper", "dall-e", "davinci", "babbage",
	"moderation", "realtime", "audio", "search", "similarity",
	"code-", "text-", "curie", "ada", "transcribe", "image",
}

// FilterFor keeps the models suitable for pipeline p, sorted. Realtime needs
// a realtime model; cascading needs a chat model.
func FilterFor(p agentconfig.PipelineType, models []string) []string {
	var out []string
	for _, m := range models {
		lower := strings.ToLower(m)
		switch p {
		case agentconfig.PipelineRealtime:
			if strings.Contains(lower, "realtime") {
				out = append(out, m)
			}
		default:
			if !containsAny(lower, chatExcludes) {
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NextVoice returns the voice after current, wrapping around. Unknown voices
// start at the first entry.
func NextVoice(current string) string {
	return next(current, Voices)
}

// NextModel returns the entry after current in list, wrapping around. It
// returns current when list is empty.
func NextModel(current string, list []string) string {
	if len(list) == 0 {
		return current
	}
	return next(current, list)
}

func next(current string, list []string) string {
	i := slices.Index(list, current)
	return list[(i+1)%len(list)]
}

// Lister lists model ids from an OpenAI-compatible API.
type Lister struct {
	// BaseURL overrides the API address, e.g. for a proxy.
	BaseURL string
	Timeout time.Duration
	// Options are appended to the client options, mainly for tests.
	Options []openaioption.RequestOption
}

// List returns every model id visible to apiKey.
func (l Lister) List(ctx context.Context, apiKey string) ([]string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("no OpenAI API key configured")
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(1),
	}
	if l.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(l.BaseURL))
	}
	opts = append(opts, l.Options...)
	client := openai.NewClient(opts...)

	var ids []string
	iter := client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		if id := iter.Current().ID; id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}
