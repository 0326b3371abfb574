package core

import "context"

type LLMInput struct {
	Text   string
	Labels map[string]string
}

type LLMOutput struct {
	Text  string
	Stats Stats
}

type Stats struct {
	InputTokenCount  int32 `json:"input_token_count,omitempty"`
	OutputTokenCount int32 `json:"output_token_count,omitempty"`
	TotalTokenCount  int32 `json:"total_token_count,omitempty"`
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		InputTokenCount:  s.InputTokenCount + o.InputTokenCount,
		OutputTokenCount: s.OutputTokenCount + o.OutputTokenCount,
		TotalTokenCount:  s.TotalTokenCount + o.TotalTokenCount,
	}
}

type ChatContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewContent(role string, content string) ChatContent {
	return ChatContent{
		Role:    role,
		Content: content,
	}
}

// LLM is the free-text reasoning capability used inside worker loops.
type LLM interface {
	Generate(ctx context.Context, systemContext string, history []ChatContent, input LLMInput) (LLMOutput, error)
}

// Decider is the constrained decision capability used by the supervisor.
// Implementations must restrict the model to one of options, but callers
// still validate the returned value.
type Decider interface {
	Choose(ctx context.Context, systemContext string, history []ChatContent, options []string) (string, Stats, error)
}
