//go:build ignore

// SPDX-License-Identifier: Apache-2.0
// fluxcheck Validation Dashboards
// Dashboard templates for Grafana or any OTLP backend fed by
// `telemetry.exporter: otlp`.
//
// DASHBOARD: Validation Outcomes
//   How much traffic the validators see and how much of it is rejected.
//
//   Queries:
//   - fluxcheck.validations.total{fluxcheck.format, fluxcheck.valid} (rate 5m)
//     Metric: Validations per second by detected format
//     Display: Stacked bars, valid=false in red
//
//   - fluxcheck.validation.errors.total{fluxcheck.error.code} (rate 5m)
//     Metric: Errors by code (SYNTAX_ERROR, STRUCTURAL_ERROR, SEMANTIC_ERROR,
//     INVALID_INPUT, INTERNAL_ERROR)
//     Display: Line chart with legend
//     Alert Threshold: any INTERNAL_ERROR; it means a validator panicked
//
// DASHBOARD: Latency
//   - fluxcheck.validation.duration_ms{fluxcheck.format}
//     Metric: p50/p95/p99 validation latency
//     Display: Heatmap
//     Threshold: Warning p99 > 50ms, jobspecs are small documents
//
// DASHBOARD: MCP Tools
//   - fluxcheck.tool.calls.total{fluxcheck.tool.name, fluxcheck.tool.success}
//     Metric: Tool calls per second, split by outcome
//     Display: Table per tool
//     Note: an invalid jobspec is a failed call for
//     flux_count_jobspec_resources but a successful one for
//     flux_validate_jobspec, which reports errors in its JSON payload
//
// TRACES:
//   Every tool call opens a "tool <name>" span with a child "Validate"
//   span. Validate carries fluxcheck.mode, fluxcheck.content_bytes,
//   fluxcheck.format, fluxcheck.valid, fluxcheck.error_count and, for
//   batch scripts, fluxcheck.batch.directives. Log lines written through
//   telemetry.ConfigureSlog carry the matching trace_id and span_id.
//
// USEFUL QUERIES:
//
// 1. Rejection ratio
//    PromQL: sum(rate(fluxcheck_validations_total{fluxcheck_valid="false"}[5m]))
//            / sum(rate(fluxcheck_validations_total[5m]))
//
// 2. Most common error codes
//    PromQL: topk(5, sum by (fluxcheck_error_code) (increase(fluxcheck_validation_errors_total[1h])))
//
// 3. Batch vs jobspec traffic
//    PromQL: sum by (fluxcheck_format) (rate(fluxcheck_validations_total[5m]))
//
package main
