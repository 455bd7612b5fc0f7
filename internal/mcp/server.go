// Package mcp exposes the intake pipeline to agents over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"

	"github.com/kutbudev/boardroom/internal/intake"
)

// Version is reported to MCP clients
const Version = "1.0.0"

// Server holds the dependencies shared by tool handlers
type Server struct {
	engine *intake.Engine
	store  intake.Store
	logger *log.Logger
}

// New creates a Server
func New(engine *intake.Engine, store intake.Store, logger *log.Logger) (*Server, error) {
	if engine == nil || store == nil {
		return nil, errors.New("engine and store are required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{engine: engine, store: store, logger: logger}, nil
}

// MCPServer builds the protocol server with every intake tool registered
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "boardroom",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `Boardroom intake tools.

- find_similar_tasks before creating work, to avoid duplicates
- ingest_content turns pasted text, emails or vCards into a card, vendor or contact
- triage_card asks for a placement suggestion on an inbox card
- accept_suggestion applies a stored suggestion

New cards land in the INBOX. High-confidence suggestions are placed automatically.`,
		},
	)
	s.registerTools(server)
	return server
}

// ServeStdio runs the server over stdin/stdout until ctx is done
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// textResult converts any data to a CallToolResult with JSON TextContent.
// Data goes into Content, not StructuredContent, which every client renders.
func textResult(data interface{}) (*mcp.CallToolResult, error) {
	if data == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "{}"},
			},
		}, nil
	}
	jsonBytes, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}

func boolPtr(b bool) *bool {
	return &b
}
