package analysis

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_HelloWorld(t *testing.T) {
	o := Analyze("Hello World\n", Seconds(0.01))

	assert.True(t, o.Success)
	assert.False(t, o.TimedOut)
	assert.False(t, o.HasErrors)
	assert.Empty(t, o.Errors)
	require.NotNil(t, o.ExecutionTime)
	assert.Equal(t, 0.01, *o.ExecutionTime)
	assert.Equal(t, DefaultLanguage, o.Language)
	assert.Contains(t, o.Summary, "executed successfully")
	assert.Contains(t, o.Summary, "Hello World")
}

func TestAnalyze_NonexistentFunction(t *testing.T) {
	out := "Error: Call to nonexistent function.\n  Line#: 5\n  Line Text: foo()\n"
	o := Analyze(out, Seconds(0.02))

	assert.False(t, o.Success)
	assert.True(t, o.HasErrors)
	require.Len(t, o.Errors, 1)
	e := o.Errors[0]
	assert.Equal(t, 1, e.Line)
	assert.Equal(t, "Error: Call to nonexistent function.", e.Message)
	assert.Equal(t, KindReference, e.Kind)
	assert.Equal(t, []string{"Line#: 5", "Line Text: foo()"}, e.Context)

	want := "Script execution failed with 1 error:\n\n" +
		"[reference] Error: Call to nonexistent function.\n" +
		"  Line#: 5\n" +
		"  Line Text: foo()"
	assert.Equal(t, want, o.Summary)
}

func TestAnalyze_TimedOut(t *testing.T) {
	o := Analyze("partial output\n", nil)

	assert.True(t, o.TimedOut)
	assert.False(t, o.Success)
	assert.Nil(t, o.ExecutionTime)
	assert.Equal(t, TimeoutSummary, o.Summary)
}

func TestAnalyze_TimeoutOverridesErrors(t *testing.T) {
	o := Analyze("Error: something broke\n\tLine#: 3\n", nil)

	assert.True(t, o.HasErrors)
	assert.Len(t, o.Errors, 1)
	assert.False(t, o.Success)
	assert.Equal(t, TimeoutSummary, o.Summary)
}

func TestAnalyze_NoStartLines(t *testing.T) {
	inputs := []string{
		"",
		"\n\n",
		"just some output\n  indented but no header\nmore output",
		"progress: 10%\nprogress: 100%\ndone",
		"\x00\x01\xff binary-ish \x7f",
	}
	for _, in := range inputs {
		o := Analyze(in, Seconds(1))
		assert.Empty(t, o.Errors, "input %q", in)
		assert.True(t, o.Success, "input %q", in)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	out := "start\nError: Missing comma\n  Line#: 2\nTypeError: Expected a Number\n\tSpecifically: x\n\nwine: could not load\n"
	first := Analyze(out, Seconds(0.5))
	second := Analyze(out, Seconds(0.5))
	assert.Equal(t, first, second)
}

func TestAnalyze_Concurrent(t *testing.T) {
	out := "Error: one\n  ctx\nError: two\n"
	want := Analyze(out, Seconds(0.1))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Analyze(out, Seconds(0.1)))
		}()
	}
	wg.Wait()
}

func TestAnalyzer_Options(t *testing.T) {
	custom, err := NewPattern("custom", RoleStart, `^AutoHotkey error`)
	require.NoError(t, err)

	a := NewAnalyzer(
		WithLanguage("ahk2"),
		WithRegistry(DefaultRegistry().With(custom)),
	)
	o := a.Analyze("AutoHotkey error happened\n", Seconds(0.01))

	assert.Equal(t, "ahk2", o.Language)
	require.Len(t, o.Errors, 1)
	assert.Equal(t, KindRuntime, o.Errors[0].Kind)

	// Default analyzer is unaffected.
	assert.Empty(t, Analyze("AutoHotkey error happened\n", Seconds(0.01)).Errors)
}

func TestOutcome_Validation(t *testing.T) {
	ok := Analyze("fine\n", Seconds(0.1)).Validation()
	assert.True(t, ok.Valid)
	assert.Equal(t, ValidMessage, ok.Message)

	failed := Analyze("Error: Duplicate function definition.\n", Seconds(0.1))
	v := failed.Validation()
	assert.False(t, v.Valid)
	assert.Equal(t, failed.Summary, v.Message)

	timedOut := Analyze("", nil).Validation()
	assert.False(t, timedOut.Valid)
	assert.Equal(t, TimeoutSummary, timedOut.Message)
}

func TestOutcome_JSON(t *testing.T) {
	data, err := json.Marshal(Analyze("ok", nil))
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"executionTime":null`)
	assert.Contains(t, s, `"errors":[]`)
	assert.Contains(t, s, `"timedOut":true`)
	assert.Contains(t, s, `"hasErrors":false`)

	data, err = json.Marshal(Analyze("Error: Missing comma\n", Seconds(0.25)))
	require.NoError(t, err)
	s = string(data)
	assert.Contains(t, s, `"executionTime":0.25`)
	assert.Contains(t, s, `"type":"syntax"`)
	assert.Contains(t, s, `"context":[]`)
}

func TestOutcome_CountByKind(t *testing.T) {
	o := Analyze("Error: Missing comma\nError: Missing bracket\nwine: failed\n", Seconds(0.1))
	counts := o.CountByKind()
	assert.Equal(t, 2, counts[KindSyntax])
	assert.Equal(t, 1, counts[KindWine])
	assert.Equal(t, 0, counts[KindType])
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("fatal")
	assert.Error(t, err)
}

func TestSummarize_ContextCappedAtThree(t *testing.T) {
	errs := []ErrorRecord{{
		Line:    1,
		Message: "Error: boom",
		Context: []string{"a", "b", "c", "d", "e"},
		Kind:    KindRuntime,
	}}
	got := Summarize("", errs, false)
	assert.Equal(t, "Script execution failed with 1 error:\n\n[runtime] Error: boom\n  a\n  b\n  c", got)
}

func TestSummarize_MultipleBlocks(t *testing.T) {
	errs := []ErrorRecord{
		{Line: 1, Message: "Error: Missing comma", Context: []string{"Line#: 1"}, Kind: KindSyntax},
		{Line: 3, Message: "wine: failed", Context: []string{}, Kind: KindWine},
	}
	got := Summarize("", errs, false)
	want := "Script execution failed with 2 errors:\n\n" +
		"[syntax] Error: Missing comma\n  Line#: 1\n\n" +
		"[wine] wine: failed"
	assert.Equal(t, want, got)
}

func TestSummarize_Preview(t *testing.T) {
	assert.Equal(t, "Script executed successfully.\n\nOutput:\n(no output)", Summarize("  \n\t", nil, false))

	long := strings.Repeat("a", 250)
	got := Summarize(long, nil, false)
	assert.True(t, strings.HasSuffix(got, strings.Repeat("a", 200)+"..."))
	assert.NotContains(t, got, strings.Repeat("a", 201))

	exact := strings.Repeat("é", 200)
	assert.True(t, strings.HasSuffix(Summarize(exact, nil, false), exact))
}

func TestSummarize_TimeoutIgnoresErrors(t *testing.T) {
	errs := []ErrorRecord{{Line: 1, Message: "Error: x", Kind: KindRuntime}}
	assert.Equal(t, TimeoutSummary, Summarize("Error: x", errs, true))
}

func TestTiming(t *testing.T) {
	assert.Nil(t, Timing(Seconds(3), true))
	assert.Nil(t, Timing(nil, true))

	got := Timing(nil, false)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)

	in := 1.5
	got = Timing(&in, false)
	require.NotNil(t, got)
	assert.Equal(t, 1.5, *got)
	in = 9
	assert.Equal(t, 1.5, *got, "result must not alias the input")
}

func TestReportedTime(t *testing.T) {
	type body struct {
		ExecutionTime ReportedTime `json:"execution_time,omitempty"`
	}
	tests := []struct {
		name     string
		in       string
		timedOut bool
		want     *float64
	}{
		{"absent", `{}`, false, Seconds(0)},
		{"explicit null", `{"execution_time":null}`, false, nil},
		{"number", `{"execution_time":0.25}`, false, Seconds(0.25)},
		{"flag wins over number", `{"execution_time":0.25}`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			require.NoError(t, json.Unmarshal([]byte(tt.in), &b))
			assert.Equal(t, tt.want, b.ExecutionTime.Resolve(tt.timedOut))
		})
	}

	var b body
	assert.Error(t, json.Unmarshal([]byte(`{"execution_time":"fast"}`), &b))

	out, err := json.Marshal(body{ExecutionTime: ReportedTime{Set: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"execution_time":null}`, string(out))
}
