// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/fluxcheck/pkg/audit"
	"github.com/jllopis/fluxcheck/pkg/mcp"
	"github.com/jllopis/fluxcheck/pkg/validate"
)

const (
	nodeJobspec = "version: 1\nresources:\n  - type: node\n    count: 2\n    with:\n      - type: core\n        count: 4\nattributes:\n  system:\n    duration: 3600\n"
	badJobspec  = "version: 1\nresources:\n  - type: node\n    count: 0\nattributes:\n  system:\n    duration: 3600\n"
	validScript = "#!/bin/bash\n#FLUX: -N 2\n#FLUX: -n 8\nhostname\n"
	badScript   = "#!/bin/bash\n#FLUX: -N2\n#FLUX: --noodles=2\nhostname\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	if code != 0 || out != "fluxcheck dev\n" {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
}

func TestHelp(t *testing.T) {
	code, out, _ := runCLI(t, "", "--help")
	if code != 0 {
		t.Fatalf("expected exit 0 for --help, got %d", code)
	}
	for _, cmd := range []string{"validate", "count", "serve", "audit"} {
		if !strings.Contains(out, cmd) {
			t.Fatalf("help output missing %q:\n%s", cmd, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "", "frobnicate")
	if code != 2 || errOut == "" {
		t.Fatalf("expected usage error, got code=%d stderr=%q", code, errOut)
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "job.yaml", nodeJobspec)
	script := writeFile(t, dir, "job.sh", validScript)

	code, out, errOut := runCLI(t, "", "validate", good, script)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %q)", code, errOut)
	}
	want := good + ": valid (yaml)\n" + script + ": valid (batch)\n"
	if out != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out, want)
	}
}

func TestValidateInvalidScript(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "bad.sh", badScript)

	code, out, _ := runCLI(t, "", "validate", script)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != script+": invalid (batch)" || !strings.Contains(lines[1], "noodles") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestValidateStdinJSON(t *testing.T) {
	code, out, _ := runCLI(t, badJobspec, "--json", "validate", "-")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	var got struct {
		File    string          `json:"file"`
		Format  string          `json:"format"`
		Jobspec json.RawMessage `json:"jobspec"`
		Errors  []string        `json:"errors"`
		Valid   bool            `json:"valid"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Valid || len(got.Errors) == 0 || got.Format != "yaml" || got.File != "" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if string(got.Jobspec) != "null" {
		t.Fatalf("expected null jobspec for invalid input, got %s", got.Jobspec)
	}
}

func TestValidateMultipleJSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "job.yaml", nodeJobspec)
	bad := writeFile(t, dir, "bad.yaml", badJobspec)

	code, out, _ := runCLI(t, "", "validate", "--json", good, bad)
	if code != 1 {
		t.Fatalf("expected exit 1 when one file is invalid, got %d", code)
	}
	var got []struct {
		File  string `json:"file"`
		Valid bool   `json:"valid"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 || got[0].File != good || !got[0].Valid || got[1].File != bad || got[1].Valid {
		t.Fatalf("unexpected reports: %+v", got)
	}
}

func TestValidateMissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "", "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND error, got %q", errOut)
	}
}

func TestValidateFailFast(t *testing.T) {
	content := "version: 1\nresources:\n  - type: node\n    count: 0\n  - type: ''\n    count: -1\nattributes:\n  system:\n    duration: 3600\n"

	_, all, _ := runCLI(t, content, "--json", "validate")
	_, first, _ := runCLI(t, content, "--json", "validate", "--fail-fast")

	var a, f struct{ Errors []string }
	if err := json.Unmarshal([]byte(all), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(first), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.Errors) != 1 || len(a.Errors) <= 1 {
		t.Fatalf("expected fail-fast to stop early: all=%v first=%v", a.Errors, f.Errors)
	}
	if f.Errors[0] != a.Errors[0] {
		t.Fatalf("fail-fast error %q should be the first collected error %q", f.Errors[0], a.Errors[0])
	}
}

func TestValidateConfigMode(t *testing.T) {
	content := "version: 1\nresources:\n  - type: node\n    count: 0\n  - type: ''\n    count: -1\nattributes:\n  system:\n    duration: 3600\n"
	_, out, _ := runCLI(t, content, "--json", "--set", "validation.mode=fail-fast", "validate")
	var got struct{ Errors []string }
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("expected a single error with fail-fast from config, got %v", got.Errors)
	}
}

func TestBadConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "", "--set", "validation.mode=sometimes", "validate")
	if code != 2 || !strings.Contains(errOut, "configuration error") {
		t.Fatalf("expected configuration error, got code=%d stderr=%q", code, errOut)
	}
}

func TestCount(t *testing.T) {
	code, out, _ := runCLI(t, nodeJobspec, "count")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if out != "Type: node, count: 2\nType: core, count: 4\n" {
		t.Fatalf("unexpected counts: %q", out)
	}
}

func TestCountTotals(t *testing.T) {
	code, out, _ := runCLI(t, nodeJobspec, "count", "--totals")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if out != "Type: node, total: 2\nType: core, total: 8\n" {
		t.Fatalf("unexpected totals: %q", out)
	}
}

func TestCountInvalid(t *testing.T) {
	code, out, errOut := runCLI(t, badJobspec, "count")
	if code != 1 || out != "" {
		t.Fatalf("expected exit 1 with no output, got code=%d out=%q", code, out)
	}
	if !strings.Contains(errOut, "The jobspec is invalid:\n") || !strings.Contains(errOut, "count must be >= 1") {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
}

func TestCountBatchScript(t *testing.T) {
	code, _, errOut := runCLI(t, validScript, "count")
	if code != 2 || !strings.Contains(errOut, "no resource tree") {
		t.Fatalf("expected invalid argument error, got code=%d stderr=%q", code, errOut)
	}
}

func newRemote(t *testing.T) string {
	t.Helper()
	s := mcp.NewServer("fluxcheck-test", "0.0.1")
	v := validate.New()
	mcp.NewTools(func() *validate.Validator { return v }).Register(s)
	ts := mcpserver.NewTestStreamableHTTPServer(s.MCPServer())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestValidateRemote(t *testing.T) {
	url := newRemote(t)

	code, out, errOut := runCLI(t, badScript, "validate", "--remote", url)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d (stderr %q)", code, errOut)
	}
	if !strings.HasPrefix(out, "-: invalid\n") || !strings.Contains(out, "noodles") {
		t.Fatalf("unexpected output: %q", out)
	}

	code, out, _ = runCLI(t, nodeJobspec, "count", "--remote", url)
	if code != 0 || !strings.HasSuffix(out, "Type: node, count: 2\nType: core, count: 4\n") {
		t.Fatalf("unexpected remote count: code=%d out=%q", code, out)
	}
}

func TestValidateRemoteRejectsLocalFlags(t *testing.T) {
	for _, flag := range [][]string{{"--fail-fast"}, {"--max-depth", "3"}} {
		args := append([]string{"validate", "--remote", "http://127.0.0.1:1/mcp"}, flag...)
		code, _, errOut := runCLI(t, nodeJobspec, args...)
		if code != 2 || !strings.Contains(errOut, "only apply to local validation") {
			t.Fatalf("%v: expected invalid argument error, got code=%d stderr=%q", flag, code, errOut)
		}
	}

	code, _, errOut := runCLI(t, nodeJobspec, "count", "--totals", "--remote", "http://127.0.0.1:1/mcp")
	if code != 2 || !strings.Contains(errOut, "only applies to local counting") {
		t.Fatalf("expected invalid argument error for count --totals, got code=%d stderr=%q", code, errOut)
	}
}

func TestRemoteUnreachable(t *testing.T) {
	code, _, errOut := runCLI(t, nodeJobspec, "--timeout", "1s", "validate", "--remote", "http://127.0.0.1:1/mcp")
	if code != 2 || !strings.Contains(errOut, "connection failed") {
		t.Fatalf("expected connection error, got code=%d stderr=%q", code, errOut)
	}
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var stdout, stderr bytes.Buffer
	go func() {
		done <- run(ctx, []string{"serve", "--transport", "http", "--addr", "127.0.0.1:0"}, strings.NewReader(""), &stdout, &stderr)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected clean shutdown, got %d", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestAuditList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := audit.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	events := []audit.Event{
		{Tool: mcp.ToolValidate, Format: "yaml", Valid: true},
		{Tool: mcp.ToolCount, Format: "batch", Valid: false, Errors: []string{"bad"}},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	store.Close()

	code, out, errOut := runCLI(t, "", "--json", "--set", "audit.path="+path, "audit", "list", "--invalid")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %q)", code, errOut)
	}
	var got []audit.Event
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 1 || got[0].Tool != mcp.ToolCount {
		t.Fatalf("unexpected events: %+v", got)
	}

	code, out, _ = runCLI(t, "", "--set", "audit.path="+path, "audit", "list")
	if code != 0 || !strings.HasPrefix(out, "TIME") || strings.Count(out, "\n") != 3 {
		t.Fatalf("unexpected table: code=%d\n%s", code, out)
	}
}

func TestAuditListRequiresPath(t *testing.T) {
	code, _, errOut := runCLI(t, "", "audit", "list")
	if code != 2 || !strings.Contains(errOut, "audit.path") {
		t.Fatalf("expected audit.path error, got code=%d stderr=%q", code, errOut)
	}
}
