// Package mcpserver exposes script execution and output analysis as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/executor"
	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// Tool names.
const (
	ToolExecute  = "execute_script"
	ToolValidate = "validate_script"
	ToolAnalyze  = "analyze_output"
)

// ErrNoExecutor is reported by execution tools when no executor is wired.
var ErrNoExecutor = errors.New("no script executor configured")

var errCodeRequired = errors.New("code is required")

// Options configures a Server.
type Options struct {
	Name    string
	Version string

	// Runner executes scripts. Nil leaves only analyze_output usable.
	Runner *executor.Runner

	// Analyzer is used by analyze_output. Defaults to the runner's analyzer.
	Analyzer *analysis.Analyzer

	// Recorder stores analyze_output results. Execution results are recorded
	// by the runner itself.
	Recorder executor.Recorder

	Logger logger.Logger
}

// Server holds the MCP server and the tools registered on it.
type Server struct {
	mcp      *mcp.Server
	runner   *executor.Runner
	analyzer *analysis.Analyzer
	recorder executor.Recorder
	logger   logger.Logger
}

// ScriptInput is the argument of execute_script and validate_script.
type ScriptInput struct {
	Code     string `json:"code" jsonschema:"the script source to run"`
	Language string `json:"language,omitempty" jsonschema:"script language, defaults to autohotkey"`
}

// AnalyzeInput is the argument of analyze_output.
type AnalyzeInput struct {
	Output        string                `json:"output" jsonschema:"raw text captured from the script run"`
	ExecutionTime analysis.ReportedTime `json:"execution_time,omitempty" jsonschema:"run duration in seconds, null when the executor timed out"`
	TimedOut      bool                  `json:"timed_out,omitempty" jsonschema:"true when the executor killed the script at its time limit"`
}

// analyzeInputSchema describes execution_time as a nullable number.
func analyzeInputSchema() *jsonschema.Schema {
	s, err := jsonschema.For[AnalyzeInput](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[analysis.ReportedTime](): {Types: []string{"null", "number"}},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("analyze_output schema: %v", err))
	}
	return s
}

// New builds a Server and registers its tools.
func New(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "scriptcheck"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		runner:   opts.Runner,
		analyzer: opts.Analyzer,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if s.analyzer == nil {
		if s.runner != nil {
			s.analyzer = s.runner.Analyzer()
		} else {
			s.analyzer = analysis.NewAnalyzer()
		}
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolExecute,
		Description: "Execute a script on the remote executor and return its analysed outcome: success, classified errors and a summary.",
	}, s.execute)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolValidate,
		Description: "Execute a script and report only whether it ran cleanly.",
	}, s.validate)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAnalyze,
		Description: "Analyse output captured from a previous script run without executing anything.",
		InputSchema: analyzeInputSchema(),
	}, s.analyze)

	return s
}

// MCP returns the underlying server, for tests and custom transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves the tools over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Infof("serving MCP tools over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) execute(ctx context.Context, _ *mcp.CallToolRequest, in ScriptInput) (*mcp.CallToolResult, analysis.Outcome, error) {
	script, err := s.script(in)
	if err != nil {
		return nil, analysis.Outcome{}, err
	}
	o, err := s.runner.Run(ctx, script)
	if err != nil {
		return nil, analysis.Outcome{}, err
	}
	return textResult(o.Summary), *o, nil
}

func (s *Server) validate(ctx context.Context, _ *mcp.CallToolRequest, in ScriptInput) (*mcp.CallToolResult, analysis.Validation, error) {
	script, err := s.script(in)
	if err != nil {
		return nil, analysis.Validation{}, err
	}
	v, err := s.runner.Validate(ctx, script)
	if err != nil {
		return nil, analysis.Validation{}, err
	}
	return textResult(v.Message), v, nil
}

func (s *Server) analyze(_ context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, analysis.Outcome, error) {
	o := s.analyzer.Analyze(in.Output, in.ExecutionTime.Resolve(in.TimedOut))
	if s.recorder != nil {
		if _, err := s.recorder.Record("mcp", o); err != nil {
			s.logger.Warnf("record outcome: %v", err)
		}
	}
	return textResult(o.Summary), o, nil
}

func (s *Server) script(in ScriptInput) (executor.Script, error) {
	if s.runner == nil {
		return executor.Script{}, ErrNoExecutor
	}
	if strings.TrimSpace(in.Code) == "" {
		return executor.Script{}, errCodeRequired
	}
	return executor.Script{Code: in.Code, Language: in.Language}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
