package mcp

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/recall-mcp/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "recall-mcp"
	// ServerVersion is the current server version
	ServerVersion = "0.3.0"
)

// Server exposes the memory service as MCP tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *service.Service
	logger zerolog.Logger
}

// NewServer creates a server with every tool registered.
func NewServer(svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		svc:    svc,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over the given streams until ctx is cancelled or the
// input is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(zerologWriter{s.logger}, "", 0))

	s.logger.Info().Int("tools", len(toolOrder)).Msg("serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	for _, kind := range toolOrder {
		s.mcp.AddTool(tools[kind].schema(), s.handler(kind))
	}
}

// zerologWriter adapts the stdio server's standard logger.
type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.logger.Error().Msg(msg)
	return len(p), nil
}
