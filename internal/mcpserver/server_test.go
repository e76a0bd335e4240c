package mcpserver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/executor"
)

type stubExecutor struct {
	result executor.RawResult
	err    error
}

func (s *stubExecutor) Execute(context.Context, executor.Script) (executor.RawResult, error) {
	return s.result, s.err
}

type memRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (m *memRecorder) Record(source string, _ analysis.Outcome) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
	return "id", nil
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()

	ss, err := s.MCP().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var v T
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestListTools(t *testing.T) {
	cs := connect(t, New(Options{}))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolExecute, ToolValidate, ToolAnalyze}, names)
}

func TestExecuteScript(t *testing.T) {
	exec := &stubExecutor{result: executor.RawResult{Output: "Hello World\n", ExecutionTime: analysis.Seconds(0.01)}}
	cs := connect(t, New(Options{Runner: executor.NewRunner(exec)}))

	res := call(t, cs, ToolExecute, map[string]any{"code": "FileAppend, Hello World`n, *"})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Script executed successfully.")

	o := decode[analysis.Outcome](t, res)
	assert.True(t, o.Success)
	assert.Empty(t, o.Errors)
	require.NotNil(t, o.ExecutionTime)
	assert.Equal(t, 0.01, *o.ExecutionTime)
}

func TestExecuteScript_ScriptFailureIsNotToolError(t *testing.T) {
	exec := &stubExecutor{result: executor.RawResult{Output: "Error: Call to nonexistent function.\n\tSpecifically: Foo()\n", ExecutionTime: analysis.Seconds(0.1)}}
	cs := connect(t, New(Options{Runner: executor.NewRunner(exec)}))

	res := call(t, cs, ToolExecute, map[string]any{"code": "Foo()"})
	assert.False(t, res.IsError)

	o := decode[analysis.Outcome](t, res)
	assert.False(t, o.Success)
	require.Len(t, o.Errors, 1)
	assert.Equal(t, analysis.KindReference, o.Errors[0].Kind)
}

func TestExecuteScript_TransportErrorIsToolError(t *testing.T) {
	exec := &stubExecutor{err: executor.ErrUnavailable}
	cs := connect(t, New(Options{Runner: executor.NewRunner(exec)}))

	res := call(t, cs, ToolExecute, map[string]any{"code": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "executor unavailable")
}

func TestExecuteScript_NoRunner(t *testing.T) {
	cs := connect(t, New(Options{}))

	res := call(t, cs, ToolExecute, map[string]any{"code": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), ErrNoExecutor.Error())
}

func TestExecuteScript_BlankCode(t *testing.T) {
	cs := connect(t, New(Options{Runner: executor.NewRunner(&stubExecutor{})}))

	res := call(t, cs, ToolExecute, map[string]any{"code": "   "})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "code is required")
}

func TestValidateScript(t *testing.T) {
	exec := &stubExecutor{result: executor.RawResult{Output: "", ExecutionTime: analysis.Seconds(0.1)}}
	cs := connect(t, New(Options{Runner: executor.NewRunner(exec)}))

	res := call(t, cs, ToolValidate, map[string]any{"code": "x := 1"})
	assert.False(t, res.IsError)
	assert.Equal(t, analysis.ValidMessage, text(t, res))

	v := decode[analysis.Validation](t, res)
	assert.True(t, v.Valid)
}

func TestValidateScript_TimedOut(t *testing.T) {
	exec := &stubExecutor{result: executor.RawResult{Output: ""}}
	cs := connect(t, New(Options{Runner: executor.NewRunner(exec)}))

	res := call(t, cs, ToolValidate, map[string]any{"code": "Loop {}"})
	assert.False(t, res.IsError)

	v := decode[analysis.Validation](t, res)
	assert.False(t, v.Valid)
	assert.Equal(t, analysis.TimeoutSummary, v.Message)
}

func TestAnalyzeOutput(t *testing.T) {
	rec := &memRecorder{}
	cs := connect(t, New(Options{Recorder: rec}))

	res := call(t, cs, ToolAnalyze, map[string]any{
		"output":         "Error: Missing comma\n\tLine: 3\n",
		"execution_time": 0.2,
	})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "[syntax] Error: Missing comma")

	o := decode[analysis.Outcome](t, res)
	assert.True(t, o.HasErrors)
	assert.Equal(t, []string{"mcp"}, rec.sources)
}

func TestAnalyzeOutput_TimedOut(t *testing.T) {
	cs := connect(t, New(Options{}))

	res := call(t, cs, ToolAnalyze, map[string]any{"output": "partial", "timed_out": true})
	o := decode[analysis.Outcome](t, res)
	assert.True(t, o.TimedOut)
	assert.Nil(t, o.ExecutionTime)
	assert.Equal(t, analysis.TimeoutSummary, text(t, res))
}

func TestAnalyzeOutput_NullExecutionTimeIsTimeout(t *testing.T) {
	cs := connect(t, New(Options{}))

	res := call(t, cs, ToolAnalyze, map[string]any{"output": "partial\n", "execution_time": nil})
	require.False(t, res.IsError, text(t, res))
	o := decode[analysis.Outcome](t, res)
	assert.True(t, o.TimedOut)
	assert.False(t, o.Success)
	assert.Nil(t, o.ExecutionTime)
	assert.Equal(t, analysis.TimeoutSummary, o.Summary)
}

func TestAnalyzeOutput_MissingExecutionTimeCompletes(t *testing.T) {
	cs := connect(t, New(Options{}))

	res := call(t, cs, ToolAnalyze, map[string]any{"output": "done\n"})
	o := decode[analysis.Outcome](t, res)
	assert.True(t, o.Success)
	require.NotNil(t, o.ExecutionTime)
	assert.Equal(t, 0.0, *o.ExecutionTime)
}
