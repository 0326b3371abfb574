package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polycode/supervisor-app/core"
	"polycode/supervisor-app/tools"
)

type workerFixture struct {
	search   *recordingTool
	code     *recordingTool
	registry *core.ToolRegistry
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		search: &recordingTool{name: "web_search", reply: func(p map[string]any) string {
			return fmt.Sprintf(`[{"title":"result for %v"}]`, p["query"])
		}},
		code: &recordingTool{name: "run_code", reply: func(p map[string]any) string {
			return "Successfully executed:\nStdout: 6.48074069840786"
		}},
	}
	f.registry = core.NewToolRegistry(f.search, f.code)
	return f
}

func (f *workerFixture) worker(t *testing.T, id core.WorkerID, llm core.LLM, tool string, opts ...core.WorkerOption) *core.Worker {
	t.Helper()
	repo, err := f.registry.Scope(tool)
	require.NoError(t, err)
	return core.NewWorker(id, "", "test role", llm, repo, opts...)
}

func history(text string) []core.Message {
	return []core.Message{core.NewMessage(core.AuthorUser, text)}
}

func TestWorker_ToolLoopProducesOneMessage(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{
		toolCall("run_code", `{"code": "console.log(Math.sqrt(42))"}`),
		response("The square root of 42 is approximately 6.48."),
	}}
	w := f.worker(t, core.Coder, llm, "run_code")

	out, err := w.Run(context.Background(), history("What's the square root of 42?"))
	require.NoError(t, err)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, core.Author("coder"), out.Messages[0].Author)
	assert.Equal(t, "The square root of 42 is approximately 6.48.", out.Messages[0].Content)
	assert.Equal(t, 2, out.Steps)
	assert.Equal(t, []core.Step{core.StepThink, core.StepCallCapability, core.StepObserve, core.StepThink, core.StepFinish}, out.Trace)
	assert.Equal(t, int32(6), out.Stats.TotalTokenCount)
	require.Len(t, f.code.inputs, 1)

	// the second model call observed the tool result
	last := llm.histories[1]
	assert.Contains(t, last[len(last)-1].Content, "<tool_result>")
	assert.Contains(t, last[len(last)-1].Content, "6.48074069840786")
}

func TestWorker_SystemPromptListsOnlyScopedTools(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{response("ok")}}
	w := f.worker(t, core.Researcher, llm, "web_search")

	_, err := w.Run(context.Background(), history("q"))
	require.NoError(t, err)
	assert.Contains(t, llm.systems[0], `"name":"web_search"`)
	assert.NotContains(t, llm.systems[0], "run_code")
	assert.Contains(t, llm.systems[0], "test role")
}

func TestWorker_ResearcherNeverExecutesCode(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{
		toolCall("run_code", `{"code": "1+1"}`),
		toolCall("web_search", `{"query": "GDP New York"}`),
		response("New York GDP is large."),
	}}
	w := f.worker(t, core.Researcher, llm, "web_search")

	out, err := w.Run(context.Background(), history("find GDP"))
	require.NoError(t, err)
	assert.Empty(t, f.code.inputs)
	assert.Len(t, f.search.inputs, 1)
	assert.Equal(t, "New York GDP is large.", out.Messages[0].Content)

	observed := llm.histories[1]
	assert.Contains(t, observed[len(observed)-1].Content, "tool not found")
}

func TestWorker_CoderNeverSearches(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{
		toolCall("web_search", `{"query": "sqrt 42"}`),
		response("cannot search"),
	}}
	w := f.worker(t, core.Coder, llm, "run_code")

	_, err := w.Run(context.Background(), history("q"))
	require.NoError(t, err)
	assert.Empty(t, f.search.inputs)
}

func TestWorker_CapabilityFailureIsObserved(t *testing.T) {
	runner := tools.NewCodeRunner(time.Second)
	codeTool, err := core.NewInbuiltTooExecutor(tools.RunCodeToolName, tools.RunCodeToolDescription, runner.RunCode)
	require.NoError(t, err)
	repo, err := core.NewToolRegistry(codeTool).Scope(tools.RunCodeToolName)
	require.NoError(t, err)

	llm := &scriptedLLM{replies: []string{
		toolCall("run_code", `{"code": "null.x"}`),
		response("Failed to execute. Error: TypeError"),
	}}
	w := core.NewWorker(core.Coder, "", "test role", llm, repo)

	out, err := w.Run(context.Background(), history("read a property of null"))
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0].Content, "Failed to execute. Error:")

	observed := llm.histories[1]
	assert.Contains(t, observed[len(observed)-1].Content, "Failed to execute. Error: TypeError")
}

func TestWorker_MalformedToolCallIsObserved(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{
		toolCall("run_code", `{"code": `),
		response("fixed"),
	}}
	w := f.worker(t, core.Coder, llm, "run_code")

	out, err := w.Run(context.Background(), history("q"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", out.Messages[0].Content)
	assert.Empty(t, f.code.inputs)
	observed := llm.histories[1]
	assert.Contains(t, observed[len(observed)-1].Content, "failed to parse parameters")
}

func TestWorker_MissingResponseTagIsCorrected(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{"just text", response("tagged")}}
	w := f.worker(t, core.Coder, llm, "run_code")

	out, err := w.Run(context.Background(), history("q"))
	require.NoError(t, err)
	assert.Equal(t, "tagged", out.Messages[0].Content)
	assert.Equal(t, 2, out.Steps)
}

func TestWorker_StepLimit(t *testing.T) {
	f := newWorkerFixture()
	llm := &scriptedLLM{replies: []string{
		toolCall("run_code", `{"code": "1"}`),
		toolCall("run_code", `{"code": "2"}`),
		toolCall("run_code", `{"code": "3"}`),
	}}
	w := f.worker(t, core.Coder, llm, "run_code", core.WithMaxSteps(2))

	out, err := w.Run(context.Background(), history("q"))
	assert.ErrorIs(t, err, core.ErrStepLimit)
	assert.Equal(t, 2, out.Steps)
	assert.Len(t, f.code.inputs, 2)
}

func TestWorker_GenerateFailureIsReturned(t *testing.T) {
	f := newWorkerFixture()
	w := f.worker(t, core.Coder, &scriptedLLM{}, "run_code")

	_, err := w.Run(context.Background(), history("q"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coder generate")
}
