// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("unexpected end of stream")
	ve := New(CodeSyntax, "failed to parse jobspec", cause)

	if ve.Code != CodeSyntax {
		t.Errorf("expected CodeSyntax, got %v", ve.Code)
	}
	if ve.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(ve, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ve       *ValidationError
		expected string
	}{
		{
			name:     "plain",
			ve:       New(CodeStructural, "jobspec is empty", nil),
			expected: "[STRUCTURAL_ERROR] jobspec is empty",
		},
		{
			name:     "with cause",
			ve:       New(CodeSyntax, "failed to parse jobspec", errors.New("bad token")),
			expected: "[SYNTAX_ERROR] failed to parse jobspec: bad token",
		},
		{
			name:     "with path and line",
			ve:       Newf(CodeSemantic, "count must be >= 1").WithPath("resources[0].count").At(4, 12),
			expected: "[SEMANTIC_ERROR] resources[0].count: count must be >= 1 (line 4)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ve.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	ve := Newf(CodeSemantic, "unrecognized directive flag").
		WithContext("flag", "--noodles").
		WithContext("line", 3)

	if ve.Context["flag"] != "--noodles" {
		t.Errorf("expected context flag to be '--noodles'")
	}
	if ve.Context["line"] != 3 {
		t.Errorf("expected context line to be set")
	}
}

func TestMarshalJSON(t *testing.T) {
	ve := New(CodeSyntax, "failed to parse jobspec", errors.New("bad token")).At(2, 1)
	data, err := json.Marshal(ve)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["code"] != "SYNTAX_ERROR" {
		t.Errorf("unexpected code: %v", decoded["code"])
	}
	if decoded["error"] != "bad token" {
		t.Errorf("unexpected cause: %v", decoded["error"])
	}
	if decoded["line"].(float64) != 2 {
		t.Errorf("unexpected line: %v", decoded["line"])
	}
}

func TestAsValidationError(t *testing.T) {
	if AsValidationError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	ve := Newf(CodeSemantic, "duplicate label")
	if AsValidationError(ve) != ve {
		t.Errorf("expected same instance")
	}
	wrapped := AsValidationError(errors.New("boom"))
	if wrapped.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", wrapped.Code)
	}
}

func TestList(t *testing.T) {
	var empty List
	if empty.Err() != nil {
		t.Fatalf("expected nil error for empty list")
	}
	if got := empty.Strings(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}

	l := List{Newf(CodeSemantic, "a"), Newf(CodeStructural, "b")}
	if l.Err() == nil {
		t.Fatalf("expected error for non-empty list")
	}
	if !strings.Contains(l.Error(), "[SEMANTIC_ERROR] a; [STRUCTURAL_ERROR] b") {
		t.Errorf("unexpected joined error: %s", l.Error())
	}
}
