// Package mcp exposes read-only BuildMaster build inspection tools over the
// Model Context Protocol, so an agent can answer "what is the build doing"
// questions without being able to start or kill anything.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"buildmaster-console/src/build"
	"buildmaster-console/src/buildmaster"
	"buildmaster-console/src/sanitize"
)

// API is the remote surface the tools read from.
type API interface {
	BuildStatus(ctx context.Context, buildID string) (*build.Snapshot, error)
	ActiveBuild(ctx context.Context) (*buildmaster.ActiveInfo, error)
	BuildLogs(ctx context.Context, buildID string, lines int) (string, error)
	BuildHistory(ctx context.Context, limit int) ([]build.Snapshot, error)
}

// Server is the MCP server for the BuildMaster console.
type Server struct {
	mcpServer *server.MCPServer
	api       API
}

// NewServer creates a new MCP server backed by the given API client.
func NewServer(api API) *Server {
	s := server.NewMCPServer(
		"buildmaster-console",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		api:       api,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	statusTool := mcp.NewTool("get_build_status",
		mcp.WithDescription("Get the current status of a build by id: lifecycle state, progress, current step, and error text if the build failed."),
		mcp.WithString("build_id",
			mcp.Required(),
			mcp.Description("Build identifier returned when the build was started"),
		),
	)

	activeTool := mcp.NewTool("get_active_build",
		mcp.WithDescription("Check whether a build is currently running on the BuildMaster server and return its id and status if so."),
	)

	historyTool := mcp.NewTool("get_build_history",
		mcp.WithDescription("List recent builds, newest first, with their final status and duration."),
		mcp.WithNumber("limit",
			mcp.Description("Max builds to return (default: 10)"),
		),
	)

	logsTool := mcp.NewTool("get_build_logs",
		mcp.WithDescription("Fetch the tail of a build's log output with terminal escape sequences stripped."),
		mcp.WithString("build_id",
			mcp.Required(),
			mcp.Description("Build identifier"),
		),
		mcp.WithNumber("lines",
			mcp.Description("Number of log lines to fetch from the end (default: 100)"),
		),
	)

	s.mcpServer.AddTool(statusTool, s.handleBuildStatus)
	s.mcpServer.AddTool(activeTool, s.handleActiveBuild)
	s.mcpServer.AddTool(historyTool, s.handleBuildHistory)
	s.mcpServer.AddTool(logsTool, s.handleBuildLogs)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleBuildStatus handles the get_build_status tool call.
func (s *Server) handleBuildStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buildID := request.GetString("build_id", "")
	if buildID == "" {
		return mcp.NewToolResultError("build_id parameter is required"), nil
	}

	snap, err := s.api.BuildStatus(ctx, buildID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch build status: %v", err)), nil
	}

	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleActiveBuild handles the get_active_build tool call.
func (s *Server) handleActiveBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.api.ActiveBuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check active build: %v", err)), nil
	}

	jsonBytes, err := json.Marshal(info)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleBuildHistory handles the get_build_history tool call.
func (s *Server) handleBuildHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 10)

	builds, err := s.api.BuildHistory(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch build history: %v", err)), nil
	}

	jsonBytes, err := json.Marshal(builds)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleBuildLogs handles the get_build_logs tool call.
func (s *Server) handleBuildLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buildID := request.GetString("build_id", "")
	if buildID == "" {
		return mcp.NewToolResultError("build_id parameter is required"), nil
	}

	lines := request.GetInt("lines", 100)

	logs, err := s.api.BuildLogs(ctx, buildID, lines)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch build logs: %v", err)), nil
	}

	return mcp.NewToolResultText(sanitize.Clean(logs)), nil
}
