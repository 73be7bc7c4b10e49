// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond
)

// ClientOption customizes the client wrapper.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and base backoff. Backoff doubles on
// every attempt.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// Client talks to a fluxcheck (or compatible) MCP server.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	cl := &Client{
		mcpClient:  c,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// NewClientWithStreamableHTTP connects to a streamable HTTP endpoint such
// as http://host:8089/mcp and performs the MCP handshake.
func NewClientWithStreamableHTTP(url string, opts ...ClientOption) (*Client, error) {
	c := NewClient(nil, opts...)
	httpClient, err := client.NewStreamableHttpClient(url, transport.WithHTTPTimeout(c.timeout))
	if err != nil {
		return nil, err
	}
	if err := httpClient.Start(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "fluxcheck-client",
		Version: "0.1.0",
	}
	if _, err := httpClient.Initialize(ctx, initRequest); err != nil {
		httpClient.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	c.mcpClient = httpClient
	return c, nil
}

// ListTools retrieves the tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := withRetry(ctx, c, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return withRetry(ctx, c, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return c.mcpClient.CallTool(ctx, req)
	})
}

// RemoteResult is a validation result decoded from flux_validate_jobspec.
// The jobspec is kept as raw JSON.
type RemoteResult struct {
	Jobspec json.RawMessage `json:"jobspec"`
	Errors  []string        `json:"errors"`
	Valid   bool            `json:"valid"`
}

// Validate runs flux_validate_jobspec remotely.
func (c *Client) Validate(ctx context.Context, content string) (*RemoteResult, error) {
	res, err := c.CallTool(ctx, ToolValidate, map[string]interface{}{"content": content})
	if err != nil {
		return nil, err
	}
	text, err := resultText(res)
	if err != nil {
		return nil, err
	}
	var out RemoteResult
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", ToolValidate, err)
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return &out, nil
}

// Count runs flux_count_jobspec_resources remotely and returns its text.
func (c *Client) Count(ctx context.Context, content string) (string, error) {
	res, err := c.CallTool(ctx, ToolCount, map[string]interface{}{"content": content})
	if err != nil {
		return "", err
	}
	return resultText(res)
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.mcpClient == nil {
		return nil
	}
	return c.mcpClient.Close()
}

func resultText(res *mcp.CallToolResult) (string, error) {
	if res == nil {
		return "", errors.New("mcp tool result is nil")
	}
	var parts []string
	for _, item := range res.Content {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", fmt.Errorf("mcp tool returned error: %s", text)
	}
	return text, nil
}

// withRetry retries transient failures. Context cancellation and deadline
// errors are returned immediately.
func withRetry[T any](ctx context.Context, c *Client, call func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := c.maxRetries + 1
	for i := 0; i < attempts; i++ {
		reqCtx, cancel := c.withTimeout(ctx)
		res, err := call(reqCtx)
		cancel()
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := c.sleepBackoff(ctx, i); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
