// Package mcpserver exposes the collection tools over the Model Context Protocol.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/ragchat/internal/tools"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Executor runs collection operations.
type Executor interface {
	Execute(ctx context.Context, op tools.Operation) tools.Result
}

// Server serves the five collection tools.
type Server struct {
	exec   Executor
	logger *zap.Logger
	server *mcp.Server
}

// NewServer creates an MCP server backed by exec.
func NewServer(exec Executor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		exec:   exec,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: "ragchat", Version: Version}, nil),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
