package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"polycode/supervisor-app/core"
)

// scriptedLLM replays canned model replies in order.
type scriptedLLM struct {
	replies   []string
	calls     int
	systems   []string
	histories [][]core.ChatContent
}

func (s *scriptedLLM) Generate(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput) (core.LLMOutput, error) {
	s.systems = append(s.systems, systemContext)
	s.histories = append(s.histories, append([]core.ChatContent(nil), history...))
	if s.calls >= len(s.replies) {
		return core.LLMOutput{}, errors.New("script exhausted")
	}
	reply := s.replies[s.calls]
	s.calls++
	return core.LLMOutput{Text: reply, Stats: core.Stats{InputTokenCount: 2, OutputTokenCount: 1, TotalTokenCount: 3}}, nil
}

// scriptedDecider replays canned routing values in order. A call whose
// index is in failAt returns that error instead of its value.
type scriptedDecider struct {
	values    []string
	calls     int
	options   [][]string
	histories [][]core.ChatContent
	err       error
	failAt    map[int]error
}

func (s *scriptedDecider) Choose(ctx context.Context, systemContext string, history []core.ChatContent, options []string) (string, core.Stats, error) {
	s.options = append(s.options, options)
	s.histories = append(s.histories, append([]core.ChatContent(nil), history...))
	if s.err != nil {
		return "", core.Stats{}, s.err
	}
	if s.calls >= len(s.values) {
		return "", core.Stats{}, errors.New("script exhausted")
	}
	v := s.values[s.calls]
	s.calls++
	if err, ok := s.failAt[s.calls-1]; ok {
		return "", core.Stats{TotalTokenCount: 1}, err
	}
	return v, core.Stats{TotalTokenCount: 1}, nil
}

// recordingTool is a ToolExecutor that records every input it receives.
type recordingTool struct {
	name   string
	inputs []string
	reply  func(params map[string]any) string
}

func (r *recordingTool) GetName() string        { return r.name }
func (r *recordingTool) GetDescription() string { return "test tool " + r.name }

func (r *recordingTool) GetToolDescriptor() core.ToolDescriptor {
	return core.ToolDescriptor{Name: r.name, Description: r.GetDescription(), Parameters: json.RawMessage(`{}`)}
}

func (r *recordingTool) Execute(ctx context.Context, input string) (string, error) {
	r.inputs = append(r.inputs, input)
	var params map[string]any
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return "", err
	}
	return r.reply(params), nil
}

// stubActor reports a fixed sequence of answers without any model.
type stubActor struct {
	id      core.WorkerID
	answers []string
	seen    [][]core.Message
	err     error
}

func (s *stubActor) GetID() core.WorkerID { return s.id }

func (s *stubActor) Run(ctx context.Context, history []core.Message) (core.WorkerOutput, error) {
	s.seen = append(s.seen, history)
	if s.err != nil {
		return core.WorkerOutput{}, s.err
	}
	n := len(s.seen) - 1
	answer := fmt.Sprintf("%s answer %d", s.id, n+1)
	if n < len(s.answers) {
		answer = s.answers[n]
	}
	return core.WorkerOutput{
		Messages: []core.Message{core.NewMessage(core.Author(s.id), answer)},
		Steps:    1,
	}, nil
}

func toolCall(name string, params string) string {
	return fmt.Sprintf("<thinking>need %s</thinking>\n<tools>\n<tool_call>\n  <tool_name>%s</tool_name>\n  <parameters>\n    %s\n  </parameters>\n</tool_call>\n</tools>", name, name, params)
}

func response(text string) string {
	return "<thinking>done</thinking>\n<response>\n" + text + "\n</response>"
}

func defaultMembers() []core.Member {
	return []core.Member{
		{ID: core.Researcher, Description: "searches the web"},
		{ID: core.Coder, Description: "executes code"},
	}
}
