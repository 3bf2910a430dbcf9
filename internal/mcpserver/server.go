// Package mcpserver exposes the task board to LLM clients over the Model
// Context Protocol (stdio transport).
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/taskservice"
)

const formatURI = "taskboard://task-format"

// Server wraps the MCP server with task board tools.
type Server struct {
	mcp                *server.MCPServer
	svc                *taskservice.Service
	defaultGranularity minimap.Granularity
}

// New creates an MCP server with all tools registered.
func New(svc *taskservice.Service, version string, g minimap.Granularity) *Server {
	if g == 0 {
		g = minimap.Week
	}
	s := &Server{svc: svc, defaultGranularity: g}

	s.mcp = server.NewMCPServer(
		"Taskboard",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List indexed tasks, optionally limited to one project folder."),
		mcp.WithString("project", mcp.Description("Project folder below the tasks root, or \"all\"")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get one parsed task by its vault-relative path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Task path, e.g. Tasks/alpha/report.md")),
	), s.getTask)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List project folders that contain at least one task."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_minimap",
		mcp.WithDescription("Count tasks per day, week or month over a date range."),
		mcp.WithString("from", mcp.Required(), mcp.Description("First date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Last date, YYYY-MM-DD")),
		mcp.WithString("granularity", mcp.Description("day, week or month")),
		mcp.WithString("project", mcp.Description("Optional project folder")),
	), s.getMinimap)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search over task names, bodies, statuses and categories."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task file. Content MUST follow the task format; "+
			"read it first via get_task_contract or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path inside the tasks folder, ending in .md")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Task file content")),
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("get_task_contract",
		mcp.WithDescription("Returns the task file format. Call this before creating tasks."),
	), s.getTaskContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Task File Format",
			mcp.WithResourceDescription("Metadata block and body rules for task files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListTasks(ctx, req.GetString("project", "")))
}

func (s *Server) getTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.GetTask(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(task)
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects := s.svc.Projects(ctx)
	if len(projects) == 0 {
		return mcp.NewToolResultText("no projects found"), nil
	}
	return mcp.NewToolResultText(strings.Join(projects, "\n")), nil
}

func (s *Server) getMinimap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g := s.defaultGranularity
	if raw := req.GetString("granularity", ""); raw != "" {
		if g, err = minimap.ParseGranularity(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	buckets := s.svc.Minimap(ctx, taskservice.MinimapQuery{
		Project:     req.GetString("project", ""),
		Granularity: g,
		From:        from,
		To:          to,
	})
	total, peak := minimap.Summary(buckets)
	return jsonResult(map[string]any{
		"granularity": g.String(),
		"buckets":     buckets,
		"total":       total,
		"peak":        peak,
	})
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.CreateTask(ctx, path, content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", task.FilePath)), nil
}

func (s *Server) getTaskContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
