package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
)

type fakeExecutor struct {
	result RawResult
	err    error
	got    Script
}

func (f *fakeExecutor) Execute(_ context.Context, s Script) (RawResult, error) {
	f.got = s
	return f.result, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
	saved   []analysis.Outcome
	err     error
}

func (f *fakeRecorder) Record(source string, o analysis.Outcome) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sources = append(f.sources, source)
	f.saved = append(f.saved, o)
	return "run-1", nil
}

func TestRunner_Success(t *testing.T) {
	exec := &fakeExecutor{result: RawResult{Output: "Hello World\n", ExecutionTime: analysis.Seconds(0.01)}}
	rec := &fakeRecorder{}
	r := NewRunner(exec, WithRecorder(rec, "mcp"))

	o, err := r.Run(context.Background(), Script{Code: "FileAppend, Hello World`n, *"})
	require.NoError(t, err)

	assert.True(t, o.Success)
	assert.False(t, o.TimedOut)
	assert.Equal(t, analysis.DefaultLanguage, o.Language)
	assert.Equal(t, analysis.DefaultLanguage, exec.got.Language)
	assert.Contains(t, o.Summary, "Hello World")

	require.Len(t, rec.saved, 1)
	assert.Equal(t, []string{"mcp"}, rec.sources)
}

func TestRunner_KeepsExplicitLanguage(t *testing.T) {
	exec := &fakeExecutor{result: RawResult{Output: "", ExecutionTime: analysis.Seconds(0)}}
	_, err := NewRunner(exec).Run(context.Background(), Script{Code: "x", Language: "ahk2"})
	require.NoError(t, err)
	assert.Equal(t, "ahk2", exec.got.Language)
}

func TestRunner_Timeout(t *testing.T) {
	exec := &fakeExecutor{result: RawResult{Output: "partial"}}
	o, err := NewRunner(exec).Run(context.Background(), Script{Code: "Loop {}"})
	require.NoError(t, err)

	assert.True(t, o.TimedOut)
	assert.False(t, o.Success)
	assert.Nil(t, o.ExecutionTime)
	assert.Equal(t, analysis.TimeoutSummary, o.Summary)
}

func TestRunner_ScriptErrors(t *testing.T) {
	out := "Error: Call to nonexistent function.\n\tSpecifically: Foo()\n\n\tLine#\n\t--->\t005: Foo()\n"
	exec := &fakeExecutor{result: RawResult{Output: out, ExecutionTime: analysis.Seconds(0.2)}}
	o, err := NewRunner(exec).Run(context.Background(), Script{Code: "Foo()"})
	require.NoError(t, err)

	assert.False(t, o.Success)
	assert.True(t, o.HasErrors)
	require.Len(t, o.Errors, 1)
	assert.Equal(t, analysis.KindReference, o.Errors[0].Kind)
}

func TestRunner_TransportError(t *testing.T) {
	rec := &fakeRecorder{}
	exec := &fakeExecutor{err: ErrUnavailable}
	o, err := NewRunner(exec, WithRecorder(rec, "run")).Run(context.Background(), Script{Code: "x"})

	assert.Nil(t, o)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, rec.saved, "transport failures are not recorded")
}

func TestRunner_RecorderFailureIsNotFatal(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	exec := &fakeExecutor{result: RawResult{Output: "ok", ExecutionTime: analysis.Seconds(1)}}
	o, err := NewRunner(exec, WithRecorder(rec, "run")).Run(context.Background(), Script{Code: "x"})

	require.NoError(t, err)
	assert.True(t, o.Success)
}

func TestRunner_Validate(t *testing.T) {
	exec := &fakeExecutor{result: RawResult{Output: "", ExecutionTime: analysis.Seconds(0.1)}}
	v, err := NewRunner(exec).Validate(context.Background(), Script{Code: "x := 1"})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, analysis.ValidMessage, v.Message)

	exec.result = RawResult{Output: "Error: Missing comma\n"}
	exec.result.ExecutionTime = analysis.Seconds(0.1)
	v, err = NewRunner(exec).Validate(context.Background(), Script{Code: "x"})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Message, "Missing comma")

	exec.result = RawResult{Output: ""}
	v, err = NewRunner(exec).Validate(context.Background(), Script{Code: "Loop {}"})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, analysis.TimeoutSummary, v.Message)
}

func TestRunner_CustomAnalyzer(t *testing.T) {
	a := analysis.NewAnalyzer(analysis.WithLanguage("ahk2"))
	r := NewRunner(&fakeExecutor{}, WithAnalyzer(a), WithLogger(nil))
	assert.Same(t, a, r.Analyzer())
}
