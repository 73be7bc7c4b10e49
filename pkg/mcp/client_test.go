package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/fluxcheck/pkg/validate"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	s := NewServer("fluxcheck-test", "0.0.1")
	v := validate.New()
	NewTools(func() *validate.Validator { return v }).Register(s)

	httpServer := mcpserver.NewTestStreamableHTTPServer(s.MCPServer())
	t.Cleanup(httpServer.Close)
	return httpServer.URL
}

func TestClientStreamableHTTP(t *testing.T) {
	client, err := NewClientWithStreamableHTTP(newTestServer(t), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewClientWithStreamableHTTP: %v", err)
	}
	defer client.Close()
	ctx := context.Background()

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
	}
	if !names[ToolValidate] || !names[ToolCount] {
		t.Fatalf("expected both tools, got %v", names)
	}

	res, err := client.Validate(ctx, batchScript)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "noodles") {
		t.Fatalf("unexpected remote result: %+v", res)
	}

	text, err := client.Count(ctx, "version: 1\nresources:\n  - type: node\n    count: 2\n    with:\n      - type: core\n        count: 4\nattributes:\n  system:\n    duration: 3600\n")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if !strings.HasSuffix(text, "Type: node, count: 2\nType: core, count: 4") {
		t.Fatalf("unexpected count text: %q", text)
	}

	if _, err := client.Count(ctx, "resources: 3\n"); err == nil {
		t.Fatal("expected tool error for invalid jobspec")
	}
}

func TestWithRetry(t *testing.T) {
	c := NewClient(nil, WithRetry(2, time.Millisecond))
	calls := 0
	got, err := withRetry(context.Background(), c, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 || calls != 3 {
		t.Fatalf("got %d, %v after %d calls", got, err, calls)
	}

	calls = 0
	_, err = withRetry(context.Background(), c, func(context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 1 {
		t.Fatalf("deadline errors must not be retried: %v after %d calls", err, calls)
	}

	calls = 0
	_, err = withRetry(context.Background(), c, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected failure after 3 attempts, got %v after %d", err, calls)
	}
}
