package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/fluxcheck/pkg/audit"
	errs "github.com/jllopis/fluxcheck/pkg/errors"
	"github.com/jllopis/fluxcheck/pkg/validate"
)

// Tool and prompt names exposed by fluxcheck.
const (
	ToolValidate   = "flux_validate_jobspec"
	ToolCount      = "flux_count_jobspec_resources"
	PromptValidate = "flux_validate_prompt"
)

const countHeader = "The jobspec is valid! Here are the total resource counts per type requested by the provided jobspec:"

// Tools implements the fluxcheck MCP tools.
type Tools struct {
	validator func() *validate.Validator
	audit     audit.Store
	logger    *slog.Logger
	readFile  func(string) ([]byte, error)
}

// ToolsOption configures Tools.
type ToolsOption func(*Tools)

// WithAudit records every tool call in store.
func WithAudit(store audit.Store) ToolsOption {
	return func(t *Tools) { t.audit = store }
}

// WithToolsLogger sets the logger for tool events.
func WithToolsLogger(l *slog.Logger) ToolsOption {
	return func(t *Tools) { t.logger = l }
}

// NewTools builds the tool set. validator is called once per request so
// configuration reloads take effect without restarting the server.
func NewTools(validator func() *validate.Validator, opts ...ToolsOption) *Tools {
	t := &Tools{
		validator: validator,
		logger:    slog.Default(),
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds the tools and the validation prompt to s.
func (t *Tools) Register(s *Server) {
	s.RegisterTool(mcp.NewTool(ToolValidate,
		mcp.WithDescription("Validate a batch script (#FLUX: directives), jobspec.yaml or jobspec.json. "+
			"Returns a JSON object with jobspec, errors and valid."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Loaded jobspec or batch script text")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	), t.Validate)

	s.RegisterTool(mcp.NewTool(ToolCount,
		mcp.WithDescription("Validate a jobspec and list the count of every resource vertex in pre-order, "+
			"one \"Type: <kind>, count: <count>\" line each."),
		mcp.WithString("content", mcp.Description("Loaded jobspec text")),
		mcp.WithString("path", mcp.Description("Path to a jobspec file; used when content is empty")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	), t.Count)

	s.RegisterPrompt(mcp.NewPrompt(PromptValidate,
		mcp.WithPromptDescription("Ask a model to judge whether a job specification requests valid resources"),
		mcp.WithArgument("script", mcp.ArgumentDescription("Jobspec or batch script to review"), mcp.RequiredArgument()),
	), validatePrompt)
}

// Validate handles flux_validate_jobspec.
func (t *Tools) Validate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(errs.New(errs.CodeInvalidInput, "content is required", err).Error()), nil
	}

	start := time.Now()
	res := t.validator().Validate(ctx, content)
	t.record(ctx, ToolValidate, "", content, res, time.Since(start))

	text, err := encodeResult(res)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(res, text), nil
}

// Count handles flux_count_jobspec_resources.
func (t *Tools) Count(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	path := strings.TrimSpace(req.GetString("path", ""))
	switch {
	case content != "" && path != "":
		return mcp.NewToolResultError(errs.Newf(errs.CodeInvalidInput, "provide either content or path, not both").Error()), nil
	case content == "" && path == "":
		return mcp.NewToolResultError(errs.Newf(errs.CodeInvalidInput, "content or path is required").Error()), nil
	case path != "":
		data, err := t.readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return mcp.NewToolResultError(errs.New(errs.CodeNotFound, "jobspec file not found", err).WithContext("path", path).Error()), nil
		}
		if err != nil {
			return mcp.NewToolResultError(errs.New(errs.CodeInvalidInput, "cannot read jobspec file", err).Error()), nil
		}
		content = string(data)
	}

	start := time.Now()
	counts, res := t.validator().Count(ctx, content)
	t.record(ctx, ToolCount, path, content, res, time.Since(start))

	if !res.Valid {
		return mcp.NewToolResultError("The jobspec is invalid:\n" + strings.Join(res.Errors, "\n")), nil
	}
	if !res.Format.IsJobspec() {
		var b strings.Builder
		b.WriteString("The batch script is valid but carries no resource tree. Directives:")
		for _, d := range res.Directives {
			b.WriteString("\n")
			b.WriteString(d.String())
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	var b strings.Builder
	b.WriteString(countHeader)
	b.WriteString("\n")
	if err := validate.FormatCounts(&b, counts); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (t *Tools) record(ctx context.Context, tool, source, content string, res validate.Result, elapsed time.Duration) {
	if t.audit == nil {
		return
	}
	sum := sha256.Sum256([]byte(content))
	ev := audit.Event{
		Tool:     tool,
		Format:   res.Format.String(),
		Valid:    res.Valid,
		Errors:   res.Errors,
		Source:   source,
		Digest:   hex.EncodeToString(sum[:]),
		Duration: elapsed,
	}
	if err := t.audit.Record(ctx, ev); err != nil {
		t.logger.WarnContext(ctx, "failed to record audit event", "tool", tool, "error", err)
	}
}
