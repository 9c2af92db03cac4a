// Package mcp serves the tool set over the Model Context Protocol stdio
// transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Tools is the tool set a Server exposes
type Tools interface {
	Definitions() []models.ToolDefinition
	Call(ctx context.Context, name string, args json.RawMessage) models.ToolResult
}

// Implementation names the server in the initialize handshake
type Implementation struct {
	Name    string
	Version string
}

// Server answers MCP requests by routing every tool call to Tools
type Server struct {
	tools Tools
	mcp   *server.MCPServer
}

// NewServer registers every tool definition with an MCP server
func NewServer(tools Tools, info Implementation) (*Server, error) {
	s := &Server{
		tools: tools,
		mcp: server.NewMCPServer(info.Name, info.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	for _, def := range tools.Definitions() {
		schema, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp: schema for %s: %w", def.Name, err)
		}
		s.mcp.AddTool(mcpgo.NewToolWithRawSchema(def.Name, def.Description, schema), s.handler(def.Name))
	}

	return s, nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		var raw json.RawMessage
		if args := req.Params.Arguments; args != nil {
			data, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("encode arguments: %w", err)
			}
			raw = data
		}
		return toCallToolResult(s.tools.Call(ctx, name, raw)), nil
	}
}

// toCallToolResult keeps the error kind as structured content so clients can
// branch on it without parsing text
func toCallToolResult(result models.ToolResult) *mcpgo.CallToolResult {
	out := &mcpgo.CallToolResult{IsError: result.IsError}
	for _, c := range result.Content {
		out.Content = append(out.Content, mcpgo.NewTextContent(c.Text))
	}
	if result.Error != nil {
		out.StructuredContent = result.Error
	}
	return out
}

// Serve reads requests from r and writes responses to w until EOF or ctx is
// cancelled
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.Default())

	log.Printf("🤝 MCP stdio transport ready")
	return stdio.Listen(ctx, r, w)
}
