// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys attached to validation spans and metrics.
const (
	AttrFormat       = "fluxcheck.format"
	AttrMode         = "fluxcheck.mode"
	AttrContentBytes = "fluxcheck.content_bytes"
	AttrValid        = "fluxcheck.valid"
	AttrErrorCount   = "fluxcheck.error_count"
	AttrErrorCode    = "fluxcheck.error.code"
	AttrNodeCount    = "fluxcheck.resource.nodes"
	AttrDirectives   = "fluxcheck.batch.directives"

	AttrToolName    = "fluxcheck.tool.name"
	AttrToolSuccess = "fluxcheck.tool.success"
	AttrTransport   = "fluxcheck.transport"
)

// RequestAttributes describe a validation request before it runs.
func RequestAttributes(format, mode string, size int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMode, mode),
		attribute.Int(AttrContentBytes, size),
	}
	if format != "" {
		attrs = append(attrs, attribute.String(AttrFormat, format))
	}
	return attrs
}

// ResultAttributes describe the outcome of a validation.
func ResultAttributes(valid bool, errorCount, nodes int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrValid, valid),
		attribute.Int(AttrErrorCount, errorCount),
	}
	if nodes > 0 {
		attrs = append(attrs, attribute.Int(AttrNodeCount, nodes))
	}
	return attrs
}

// ToolAttributes describe an MCP tool invocation.
func ToolAttributes(name, transport string, success bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolSuccess, success),
	}
	if transport != "" {
		attrs = append(attrs, attribute.String(AttrTransport, transport))
	}
	return attrs
}
