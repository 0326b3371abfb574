package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

var systemWorkerContext = `
You are the {{worker_name}} on a team of workers coordinated by a supervisor. The supervisor has handed you the conversation so far; do your part of the task and report back.

Your role:
<worker_system_context>
{{worker_system_context}}
</worker_system_context>

Follow these steps:

1. Read the conversation. Messages written by other team members are prefixed with their name in square brackets.

2. Think step by step about what you still need. Put your thinking between the <thinking></thinking> tag.

3. If you need a tool, call it and wait for its result. Do not guess tool results.

4. When you have the answer for your part of the task, write it for the supervisor in the following format:
   <response>
   [Your result goes here]
   </response>

Always include the <response> tag in your final answer and never include it while you are still calling tools.
`

const responseCorrection = "it look like response tag not properly completed.correct the error silently."

// WorkerID names a worker role. The set of valid ids is fixed when the
// graph is built.
type WorkerID string

const (
	Researcher WorkerID = "researcher"
	Coder      WorkerID = "coder"
)

// Step is a state of the worker reasoning loop.
type Step string

const (
	StepThink          Step = "THINK"
	StepCallCapability Step = "CALL_CAPABILITY"
	StepObserve        Step = "OBSERVE"
	StepFinish         Step = "FINISH"
)

const DefaultMaxSteps = 8

type WorkerOption func(*Worker)

// WithMaxSteps bounds the number of THINK steps per invocation.
func WithMaxSteps(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.MaxSteps = n
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWorker(id WorkerID, description string, systemContext string, llm LLM, toolRepo *ToolRepo, opts ...WorkerOption) *Worker {
	worker := &Worker{
		ID:            id,
		Description:   description,
		SystemContext: systemContext,
		LLM:           llm,
		MaxSteps:      DefaultMaxSteps,
		toolRepo:      toolRepo,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker
}

// Worker is a capability-scoped reasoning loop. It only sees the tools in
// its own ToolRepo.
type Worker struct {
	ID            WorkerID
	Description   string
	SystemContext string
	LLM           LLM
	MaxSteps      int
	toolRepo      *ToolRepo
	logger        *slog.Logger
}

func (w *Worker) GetID() WorkerID {
	return w.ID
}

func (w *Worker) GetDescription() string {
	return w.Description
}

func (w *Worker) systemPrompt() string {
	prompt := ReplaceLabels(systemWorkerContext, map[string]string{
		"worker_name":           string(w.ID),
		"worker_system_context": w.SystemContext,
	})
	if tools := w.toolRepo.ListToolDescriptors(); len(tools) > 0 {
		prompt += "\n" + GetToolPrompt(tools)
	}
	return prompt
}

// Run executes the loop THINK -> CALL_CAPABILITY -> OBSERVE -> THINK until
// the model produces a <response>, and returns exactly one message
// authored by the worker. Tool exchanges stay inside the loop.
func (w *Worker) Run(ctx context.Context, history []Message) (WorkerOutput, error) {
	systemContext := w.systemPrompt()
	contents := ToChatContents(history)

	var (
		out     WorkerOutput
		text    string
		calls   []ToolCall
		results []ToolResult
	)
	step := StepThink
	for {
		out.Trace = append(out.Trace, step)
		switch step {
		case StepThink:
			if out.Steps >= w.MaxSteps {
				return out, fmt.Errorf("%s after %d steps: %w", w.ID, out.Steps, ErrStepLimit)
			}
			out.Steps++
			generated, err := w.LLM.Generate(ctx, systemContext, contents, LLMInput{})
			if err != nil {
				return out, fmt.Errorf("%s generate: %w", w.ID, err)
			}
			out.Stats = out.Stats.Add(generated.Stats)
			text = strings.TrimSpace(generated.Text)
			contents = append(contents, NewContent("assistant", text))

			calls, err = ExtractToolCalls(text)
			if err != nil {
				results = []ToolResult{{Output: err.Error()}}
				step = StepObserve
				continue
			}
			if len(calls) > 0 {
				step = StepCallCapability
			} else {
				step = StepFinish
			}

		case StepCallCapability:
			results = results[:0]
			for _, call := range calls {
				w.logger.DebugContext(ctx, "tool call", "worker", w.ID, "tool", call.ToolName)
				ret, err := w.executeTool(ctx, call.ToolName, call.Parameters)
				if err != nil {
					ret = err.Error()
				}
				results = append(results, ToolResult{ToolName: call.ToolName, Output: ret})
			}
			step = StepObserve

		case StepObserve:
			resultsStr, err := json.Marshal(results)
			if err != nil {
				return out, err
			}
			contents = append(contents, NewContent("user", "<tool_result>"+string(resultsStr)+"</tool_result>"))
			step = StepThink

		case StepFinish:
			response, ok := ExtractTagContent(text, "response")
			if !ok {
				w.logger.DebugContext(ctx, "response tag missing", "worker", w.ID)
				contents = append(contents, NewContent("user", responseCorrection))
				step = StepThink
				continue
			}
			out.Messages = []Message{NewMessage(Author(w.ID), response)}
			return out, nil
		}
	}
}

func (w *Worker) executeTool(ctx context.Context, name string, input map[string]any) (string, error) {
	executor := w.toolRepo.GetTool(name)
	if executor == nil {
		return "", fmt.Errorf("tool %s: %w", name, ErrToolNotFound)
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return executor.Execute(ctx, string(b))
}
