package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"polycode/supervisor-app/core"
)

const DefaultModel = "gemini-2.0-flash"

type Gemini struct {
	ModelName string
	client    *genai.Client
}

func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	return &Gemini{
		ModelName: modelName,
		client:    client,
	}, nil
}

func toContents(history []core.ChatContent, input core.LLMInput) []*genai.Content {
	var contents []*genai.Content
	for _, content := range history {
		if content.Role == "user" {
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: content.Content}}})
		} else if content.Role == "assistant" {
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: content.Content}}})
		}
	}
	if input.Text != "" {
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: input.Text}}})
	}
	return contents
}

func statsOf(result *genai.GenerateContentResponse) core.Stats {
	if result.UsageMetadata == nil {
		return core.Stats{}
	}
	return core.Stats{
		InputTokenCount:  result.UsageMetadata.PromptTokenCount,
		OutputTokenCount: result.UsageMetadata.CandidatesTokenCount,
		TotalTokenCount:  result.UsageMetadata.TotalTokenCount,
	}
}

func (g *Gemini) Generate(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput) (core.LLMOutput, error) {
	var config *genai.GenerateContentConfig = nil
	if systemContext != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemContext}}},
		}
	}
	result, err := g.client.Models.GenerateContent(ctx,
		g.ModelName,
		toContents(history, input),
		config,
	)
	if err != nil {
		return core.LLMOutput{}, err
	}

	return core.LLMOutput{Text: result.Text(), Stats: statsOf(result)}, nil
}

// RouterSchema is the structured output the supervisor model must produce:
// an object whose "next" field is one of options.
func RouterSchema(options []string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: "Worker to route to next. If no workers needed, route to FINISH.",
		Properties: map[string]*genai.Schema{
			"next": {
				Type:        genai.TypeString,
				Enum:        options,
				Description: "The next role to run, or FINISH if we are done",
			},
		},
		Required: []string{"next"},
	}
}

type router struct {
	Next string `json:"next"`
}

// Choose asks the model for a routing decision restricted to options via a
// JSON response schema. The raw value is returned unvalidated.
func (g *Gemini) Choose(ctx context.Context, systemContext string, history []core.ChatContent, options []string) (string, core.Stats, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   RouterSchema(options),
	}
	if systemContext != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemContext}}}
	}
	result, err := g.client.Models.GenerateContent(ctx, g.ModelName, toContents(history, core.LLMInput{}), config)
	if err != nil {
		return "", core.Stats{}, err
	}
	stats := statsOf(result)

	next, err := ParseRouter(result.Text())
	if err != nil {
		return "", stats, err
	}
	return next, stats, nil
}

// ParseRouter extracts the "next" field of a router response. Output that
// is not a JSON router object wraps core.ErrMalformedDecision.
func ParseRouter(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(text, "```")), "```")
	var r router
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return "", fmt.Errorf("%w: router output %q: %w", core.ErrMalformedDecision, text, err)
	}
	return r.Next, nil
}
