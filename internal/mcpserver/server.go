// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes portfolio management tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/project"
)

// Server wraps the MCP server with portfolio tools.
type Server struct {
	mcp *server.MCPServer
	svc *project.Service
}

// New creates a new MCP server with all portfolio tools registered.
func New(svc *project.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List every project in the portfolio collection."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Read a single project record by its id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Project id (kebab-case slug)")),
	), s.getProject)

	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a new project record. The record MUST follow the "+
			"canonical project format (kebab-case id, YYYY-MM-DD creationDate). Read "+
			"the contract first via the get_project_contract tool or the "+
			"folio://project-format resource."),
		mcp.WithString("record", mcp.Required(), mcp.Description("Project record as a JSON object")),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool("update_project",
		mcp.WithDescription("Replace an existing project record. The id itself cannot change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the project to update")),
		mcp.WithString("record", mcp.Required(), mcp.Description("Full replacement record as a JSON object")),
	), s.updateProject)

	s.mcp.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Delete a project record and its committed thumbnail asset."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the project to delete")),
	), s.deleteProject)

	s.mcp.AddTool(mcp.NewTool("get_project_contract",
		mcp.WithDescription("Returns the canonical project record format contract. "+
			"Call this before creating or updating projects to ensure correct structure."),
	), s.getProjectContract)

	// Resource: project format contract.
	s.mcp.AddResource(
		mcp.NewResource("folio://project-format", "Project Format Contract",
			mcp.WithResourceDescription("Canonical project record format that all records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readProjectFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	col, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projects := col.Projects
	if projects == nil {
		projects = []models.Project{}
	}
	out, _ := json.MarshalIndent(projects, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	record, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p models.Project
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record JSON: %v", err)), nil
	}
	created, err := s.svc.CreateProject(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", created.ID)), nil
}

func (s *Server) updateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p models.Project
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record JSON: %v", err)), nil
	}
	if _, err := s.svc.UpdateProject(ctx, id, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", id)), nil
}

func (s *Server) deleteProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteProject(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) getProjectContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectFormatContract), nil
}

func (s *Server) readProjectFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "folio://project-format",
			MIMEType: "text/markdown",
			Text:     ProjectFormatContract,
		},
	}, nil
}
