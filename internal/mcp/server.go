// ABOUTME: MCP server setup for tracker values and settings.
// ABOUTME: Wraps the MCP server around one tracker session.
package mcp

import (
	"context"
	"errors"

	"github.com/harperreed/tracker/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with session access.
type Server struct {
	mcpServer *mcp.Server
	session   *session.Session
}

// NewServer creates a new MCP server over the given session.
func NewServer(sess *session.Session) (*Server, error) {
	if sess == nil {
		return nil, errors.New("mcp server needs a session")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tracker",
			Version: Version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		session:   sess,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
