// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes fluxcheck over the Model Context Protocol and provides
// a client for remote validation.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/fluxcheck/pkg/telemetry"
)

// Server wraps the mcp-go server with tracing, metrics and logging around
// every tool call.
type Server struct {
	mcpServer *server.MCPServer
	transport string
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *telemetry.ValidationMetrics
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for tool call events.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerMetrics records tool calls on m.
func WithServerMetrics(m *telemetry.ValidationMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates an MCP server advertising tools and prompts.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Validate Flux jobspecs and batch scripts and count the resources they request."),
		),
		logger: slog.Default(),
		tracer: otel.Tracer("fluxcheck/mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// RegisterTool adds a tool. Handler results with IsError set count as
// failed calls.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	name := tool.Name
	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := s.tracer.Start(ctx, "tool "+name)
		defer span.End()

		start := time.Now()
		res, err := handler(ctx, req)
		ok := err == nil && res != nil && !res.IsError
		span.SetAttributes(telemetry.ToolAttributes(name, s.transport, ok)...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.RecordToolCall(ctx, name, ok)
		s.logger.DebugContext(ctx, "tool call", "tool", name, "success", ok, "duration", time.Since(start))
		return res, err
	})
}

// RegisterPrompt adds a prompt template.
func (s *Server) RegisterPrompt(prompt mcp.Prompt, handler server.PromptHandlerFunc) {
	s.mcpServer.AddPrompt(prompt, handler)
}

// ServeStdio serves on stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	s.transport = "stdio"
	s.logger.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP serves the streamable HTTP transport on addr under
// /mcp until ctx is cancelled.
func (s *Server) ServeStreamableHTTP(ctx context.Context, addr string) error {
	s.transport = "http"
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over streamable HTTP", "addr", addr, "path", "/mcp")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
