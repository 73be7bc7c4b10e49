// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Package jobspec decodes, validates and walks Flux jobspec resource trees.
package jobspec

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ResourceKind names the type of a resource vertex. The set is open: any
// identifier is accepted, the constants below are the ones Flux schedulers
// know about out of the box.
type ResourceKind string

const (
	KindNode    ResourceKind = "node"
	KindSocket  ResourceKind = "socket"
	KindCore    ResourceKind = "core"
	KindPU      ResourceKind = "pu"
	KindGPU     ResourceKind = "gpu"
	KindMemory  ResourceKind = "memory"
	KindSlot    ResourceKind = "slot"
	KindL3Cache ResourceKind = "L3cache"
	KindSSD     ResourceKind = "ssd"
	KindStorage ResourceKind = "storage"
)

var knownKinds = map[ResourceKind]struct{}{
	KindNode: {}, KindSocket: {}, KindCore: {}, KindPU: {}, KindGPU: {},
	KindMemory: {}, KindSlot: {}, KindL3Cache: {}, KindSSD: {}, KindStorage: {},
}

var kindPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Known reports whether the kind is one of the predefined kinds.
func (k ResourceKind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

// Valid reports whether the kind is a non-empty identifier.
func (k ResourceKind) Valid() bool {
	return kindPattern.MatchString(string(k))
}

func (k ResourceKind) String() string { return string(k) }

// ResourceNode is a vertex of the resource tree. Children holds the nested
// "with" list and is owned by the node.
type ResourceNode struct {
	Kind      ResourceKind   `json:"type"`
	Count     int            `json:"count"`
	Unit      string         `json:"unit,omitempty"`
	Label     string         `json:"label,omitempty"`
	Exclusive bool           `json:"exclusive,omitempty"`
	Children  []ResourceNode `json:"with,omitempty"`
}

// TaskCount is the multiplicity of a task. Exactly one field is non-zero.
type TaskCount struct {
	PerSlot int `json:"per_slot,omitempty"`
	PerNode int `json:"per_node,omitempty"`
	Total   int `json:"total,omitempty"`
}

func (c TaskCount) String() string {
	switch {
	case c.PerSlot > 0:
		return fmt.Sprintf("per_slot=%d", c.PerSlot)
	case c.PerNode > 0:
		return fmt.Sprintf("per_node=%d", c.PerNode)
	case c.Total > 0:
		return fmt.Sprintf("total=%d", c.Total)
	default:
		return "unset"
	}
}

// Task describes a command and where its instances are placed.
type Task struct {
	Command    []string               `json:"command"`
	Slot       string                 `json:"slot"`
	Count      TaskCount              `json:"count"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Attributes holds the system and user attribute dictionaries. Only the
// system duration is interpreted; everything else is kept as decoded.
type Attributes struct {
	System map[string]interface{} `json:"system,omitempty"`
	User   map[string]interface{} `json:"user,omitempty"`

	duration    time.Duration
	hasDuration bool
}

// Duration returns the requested run time and whether one was given.
func (a Attributes) Duration() (time.Duration, bool) {
	return a.duration, a.hasDuration
}

// Jobspec is a validated job specification.
type Jobspec struct {
	Version    int            `json:"version"`
	Resources  []ResourceNode `json:"resources"`
	Attributes Attributes     `json:"attributes"`
	Tasks      []Task         `json:"tasks,omitempty"`
}

// Mode selects how far validation proceeds after the first error.
type Mode int

const (
	// CollectAll walks the whole document and reports every error.
	CollectAll Mode = iota
	// FailFast stops at the first error.
	FailFast
)

func (m Mode) String() string {
	if m == FailFast {
		return "fail-fast"
	}
	return "collect-all"
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "collect-all", "collect_all", "all":
		return CollectAll, nil
	case "fail-fast", "fail_fast", "failfast":
		return FailFast, nil
	default:
		return CollectAll, fmt.Errorf("unknown validation mode %q", s)
	}
}

// DefaultMaxDepth bounds the nesting of resource trees.
const DefaultMaxDepth = 64

// Options controls tree validation.
type Options struct {
	Mode     Mode
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
