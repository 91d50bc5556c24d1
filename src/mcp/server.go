// Package mcp exposes the generation pipeline as an MCP server so agent
// frontends can request tests and inspect past runs over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"testforge-agent/src/config"
	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
	"testforge-agent/src/orchestrate"
)

// Server is the MCP server for testforge.
type Server struct {
	mcpServer *server.MCPServer
	cfg       *config.Config
	store     RunStore
	log       logger.Logger
}

// NewServer creates an MCP server bound to the given configuration. Logging
// must stay off stdout, so callers pass a silent or file-backed logger.
func NewServer(cfg *config.Config, log logger.Logger) *Server {
	s := server.NewMCPServer(
		"testforge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		cfg:       cfg,
		store:     NewInMemoryStore(),
		log:       log,
	}
	srv.registerTools()
	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	generateTool := mcp.NewTool("generate_tests",
		mcp.WithDescription("Generate Google Test unit tests for analyzed C/C++ functions. Input is the analyzer's JSON output: an array of functions with their extraction contexts. Returns a run summary with the run_id; use get_run_summary and get_function_result to inspect it later."),
		mcp.WithString("functions_json",
			mcp.Required(),
			mcp.Description("JSON array of analyzed functions (name, return_type, parameters, body, file, line, language, plus extraction context)"),
		),
		mcp.WithString("strategy",
			mcp.Description("Execution strategy override: sequential, concurrent, or adaptive"),
		),
	)

	summaryTool := mcp.NewTool("get_run_summary",
		mcp.WithDescription("Get the summary of a completed generation run: success counts, token totals, failure breakdown."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID from a generate_tests response"),
		),
	)

	resultTool := mcp.NewTool("get_function_result",
		mcp.WithDescription("Get one function's generation result within a run, including the generated test code and any error."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID from a generate_tests response"),
		),
		mcp.WithString("function_name",
			mcp.Required(),
			mcp.Description("Name of the function whose result to fetch"),
		),
	)

	s.mcpServer.AddTool(generateTool, s.handleGenerateTests)
	s.mcpServer.AddTool(summaryTool, s.handleGetRunSummary)
	s.mcpServer.AddTool(resultTool, s.handleGetFunctionResult)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleGenerateTests handles the generate_tests tool call.
func (s *Server) handleGenerateTests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	functionsJSON := request.GetString("functions_json", "")
	if functionsJSON == "" {
		return mcp.NewToolResultError("functions_json parameter is required"), nil
	}

	var functions []contracts.AnalyzedFunction
	if err := json.Unmarshal([]byte(functionsJSON), &functions); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("functions_json is not valid: %v", err)), nil
	}
	if len(functions) == 0 {
		return mcp.NewToolResultError("functions_json contains no functions"), nil
	}

	cfg := *s.cfg
	if strategy := request.GetString("strategy", ""); strategy != "" {
		cfg.Strategy = strategy
	}

	orchestrator, err := orchestrate.New(&cfg, nil, s.log)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set up run: %v", err)), nil
	}

	result, err := orchestrator.Run(ctx, functions)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	s.store.Store(result.Summary.RunID, result)

	jsonBytes, err := json.Marshal(result.Summary)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetRunSummary handles the get_run_summary tool call.
func (s *Server) handleGetRunSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}

	summary, found := s.store.Summary(runID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
	}

	jsonBytes, err := json.Marshal(summary)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetFunctionResult handles the get_function_result tool call.
func (s *Server) handleGetFunctionResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}
	functionName := request.GetString("function_name", "")
	if functionName == "" {
		return mcp.NewToolResultError("function_name parameter is required"), nil
	}

	result, found := s.store.Result(runID, functionName)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("result not found: run_id=%s, function=%s", runID, functionName)), nil
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
