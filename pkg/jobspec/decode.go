// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package jobspec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/jllopis/fluxcheck/pkg/errors"
)

// maxResourceNodes bounds the number of resource vertices visited, which
// also caps alias expansion in hostile documents.
const maxResourceNodes = 100000

// Parse loads a jobspec from YAML or JSON text and validates it.
func Parse(data []byte, opts Options) (*Jobspec, errs.List) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, errs.List{errs.Newf(errs.CodeStructural, "jobspec is empty")}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.List{errs.New(errs.CodeSyntax, "failed to parse jobspec", err)}
	}
	return Decode(&doc, opts)
}

// Decode validates an already parsed document and builds the typed
// Jobspec. The returned list is empty iff the jobspec is non-nil.
func Decode(root *yaml.Node, opts Options) (*Jobspec, errs.List) {
	d := &decoder{opts: opts, maxDepth: opts.maxDepth()}
	js := d.decode(root)
	if len(d.errs) > 0 {
		return nil, d.errs
	}
	return js, nil
}

type labelRef struct {
	label string
	kind  ResourceKind
	path  string
	node  *yaml.Node
}

type slotRef struct {
	slot string
	path string
	node *yaml.Node
}

type decoder struct {
	opts     Options
	maxDepth int
	errs     errs.List
	visited  int
	aborted  bool
	labels   []labelRef
	slots    []slotRef
	byLabel  map[string]labelRef
}

func (d *decoder) halted() bool {
	return d.aborted || (d.opts.Mode == FailFast && len(d.errs) > 0)
}

func (d *decoder) errorf(code errs.ErrorCode, n *yaml.Node, path, format string, args ...interface{}) {
	e := errs.Newf(code, format, args...).WithPath(path)
	if n != nil {
		e.At(n.Line, n.Column)
	}
	d.errs = append(d.errs, e)
}

func (d *decoder) decode(root *yaml.Node) *Jobspec {
	n := root
	if n != nil && n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			n = nil
		} else {
			n = n.Content[0]
		}
	}
	n = d.resolve(n)
	if n == nil {
		d.errorf(errs.CodeStructural, nil, "", "jobspec is empty")
		return nil
	}
	if n.Kind != yaml.MappingNode {
		d.errorf(errs.CodeStructural, n, "", "jobspec must be a mapping, got %s", describe(n))
		return nil
	}
	if lookup(n, "resources") == nil {
		d.errorf(errs.CodeStructural, n, "", "jobspec is missing required key %q", "resources")
		return nil
	}

	f := d.fields(n, "", "version", "resources", "attributes", "tasks")
	if d.halted() {
		return nil
	}
	js := &Jobspec{}
	js.Version = d.version(n, f["version"])
	if d.halted() {
		return nil
	}
	js.Resources = d.resources(f["resources"])
	if d.halted() {
		return nil
	}
	if a := f["attributes"]; a != nil {
		js.Attributes = d.attributes(a)
		if d.halted() {
			return nil
		}
	}
	if d.missingDuration(f["attributes"]) {
		d.errorf(errs.CodeStructural, n, "", "jobspec is missing required key %q", "attributes.system.duration")
		if d.halted() {
			return nil
		}
	}
	if t := f["tasks"]; t != nil {
		js.Tasks = d.tasks(t)
		if d.halted() {
			return nil
		}
	}
	d.checkLabels()
	if d.halted() {
		return nil
	}
	d.checkSlots()
	return js
}

func (d *decoder) version(parent, n *yaml.Node) int {
	if n == nil {
		d.errorf(errs.CodeStructural, parent, "", "jobspec is missing required key %q", "version")
		return 0
	}
	v, ok := intValue(n)
	if !ok {
		d.errorf(errs.CodeStructural, n, "version", "version must be an integer, got %s", describe(n))
		return 0
	}
	if v < 1 {
		d.errorf(errs.CodeSemantic, n, "version", "version must be >= 1, got %d", v)
	}
	return v
}

func (d *decoder) resources(n *yaml.Node) []ResourceNode {
	if n == nil || n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		d.errorf(errs.CodeStructural, n, "resources", "resources must be a non-empty list, got %s", describe(n))
		return nil
	}
	return d.children(n, "resources", 1, 1)
}

func (d *decoder) children(seq *yaml.Node, path string, depth, mult int) []ResourceNode {
	out := make([]ResourceNode, 0, len(seq.Content))
	for i, c := range seq.Content {
		r := d.node(d.resolve(c), fmt.Sprintf("%s[%d]", path, i), depth, mult)
		if d.halted() {
			return out
		}
		out = append(out, r)
	}
	return out
}

// node validates one vertex and then its children, so a vertex's own
// errors always precede those of its descendants. mult is the product of
// the ancestors' counts, or 0 once it is unknown.
func (d *decoder) node(n *yaml.Node, path string, depth, mult int) ResourceNode {
	var r ResourceNode
	if depth > d.maxDepth {
		d.errorf(errs.CodeStructural, n, path, "resource tree exceeds maximum depth of %d", d.maxDepth)
		return r
	}
	d.visited++
	if d.visited > maxResourceNodes {
		d.errorf(errs.CodeStructural, n, path, "resource tree exceeds %d resources", maxResourceNodes)
		d.aborted = true
		return r
	}
	if n == nil || n.Kind != yaml.MappingNode {
		d.errorf(errs.CodeStructural, n, path, "resource must be a mapping, got %s", describe(n))
		return r
	}

	f := d.fields(n, path, "type", "count", "unit", "label", "exclusive", "with")
	if d.halted() {
		return r
	}

	if t := f["type"]; t == nil {
		d.errorf(errs.CodeStructural, n, path, "missing required key %q", "type")
	} else if s, ok := stringValue(t); !ok {
		d.errorf(errs.CodeStructural, t, path+".type", "type must be a string, got %s", describe(t))
	} else if kind := ResourceKind(s); !kind.Valid() {
		d.errorf(errs.CodeStructural, t, path+".type", "type must be a non-empty identifier, got %q", s)
	} else {
		r.Kind = kind
	}
	if d.halted() {
		return r
	}

	if c := f["count"]; c == nil {
		d.errorf(errs.CodeStructural, n, path, "missing required key %q", "count")
	} else if v, ok := intValue(c); !ok {
		d.errorf(errs.CodeStructural, c, path+".count", "count must be an integer, got %s %q", describe(c), c.Value)
	} else if v < 1 {
		d.errorf(errs.CodeSemantic, c, path+".count", "count must be >= 1, got %d", v)
	} else {
		r.Count = v
	}
	total := 0
	if mult > 0 && r.Count > 0 {
		if r.Count > math.MaxInt/mult {
			d.errorf(errs.CodeSemantic, f["count"], path+".count", "cumulative count overflows: %d x %d", mult, r.Count)
		} else {
			total = mult * r.Count
		}
	}
	if d.halted() {
		return r
	}

	if u := f["unit"]; u != nil {
		if s, ok := stringValue(u); ok {
			r.Unit = s
		} else {
			d.errorf(errs.CodeStructural, u, path+".unit", "unit must be a string, got %s", describe(u))
		}
	}
	if l := f["label"]; l != nil {
		if s, ok := stringValue(l); ok && s != "" {
			r.Label = s
			d.labels = append(d.labels, labelRef{label: s, kind: r.Kind, path: path, node: l})
		} else {
			d.errorf(errs.CodeStructural, l, path+".label", "label must be a non-empty string, got %s", describe(l))
		}
	}
	if x := f["exclusive"]; x != nil {
		if b, ok := boolValue(x); ok {
			r.Exclusive = b
		} else {
			d.errorf(errs.CodeStructural, x, path+".exclusive", "exclusive must be a boolean, got %s", describe(x))
		}
	}
	if d.halted() {
		return r
	}

	if w := f["with"]; w != nil {
		if w.Kind != yaml.SequenceNode {
			d.errorf(errs.CodeStructural, w, path+".with", "with must be a list, got %s", describe(w))
			return r
		}
		r.Children = d.children(w, path+".with", depth+1, total)
	}
	return r
}

func (d *decoder) attributes(n *yaml.Node) Attributes {
	var a Attributes
	if n.Kind != yaml.MappingNode {
		d.errorf(errs.CodeStructural, n, "attributes", "attributes must be a mapping, got %s", describe(n))
		return a
	}
	f := d.fields(n, "attributes", "system", "user")
	if d.halted() {
		return a
	}
	if s := f["system"]; s != nil {
		if s.Kind != yaml.MappingNode {
			d.errorf(errs.CodeStructural, s, "attributes.system", "system must be a mapping, got %s", describe(s))
		} else {
			a.System = d.freeform(s, "attributes.system")
			if dur := lookup(s, "duration"); dur != nil {
				a.duration, a.hasDuration = d.duration(d.resolve(dur), "attributes.system.duration")
			}
		}
	}
	if d.halted() {
		return a
	}
	if u := f["user"]; u != nil {
		if u.Kind != yaml.MappingNode {
			d.errorf(errs.CodeStructural, u, "attributes.user", "user must be a mapping, got %s", describe(u))
		} else {
			a.User = d.freeform(u, "attributes.user")
		}
	}
	return a
}

// missingDuration reports whether attributes.system.duration is absent.
// Malformed enclosing values are reported by attributes instead.
func (d *decoder) missingDuration(attrs *yaml.Node) bool {
	if attrs == nil {
		return true
	}
	if attrs.Kind != yaml.MappingNode {
		return false
	}
	sys := lookup(attrs, "system")
	if sys == nil {
		return true
	}
	sys = d.resolve(sys)
	return sys.Kind == yaml.MappingNode && lookup(sys, "duration") == nil
}

func (d *decoder) duration(n *yaml.Node, path string) (time.Duration, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		d.errorf(errs.CodeStructural, n, path, "duration must be a number or a duration string, got %s", describe(n))
		return 0, false
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
		var sec float64
		if err := n.Decode(&sec); err != nil || math.IsNaN(sec) {
			d.errorf(errs.CodeStructural, n, path, "duration must be a number, got %q", n.Value)
			return 0, false
		}
		if sec < 0 {
			d.errorf(errs.CodeSemantic, n, path, "duration must not be negative, got %v", sec)
			return 0, false
		}
		return secondsToDuration(sec), true
	case "!!str":
		v, err := ParseDuration(n.Value)
		if err != nil {
			d.errs = append(d.errs, errs.New(errs.CodeStructural, "invalid duration", err).WithPath(path).At(n.Line, n.Column))
			return 0, false
		}
		return v, true
	default:
		d.errorf(errs.CodeStructural, n, path, "duration must be a number or a duration string, got %s", describe(n))
		return 0, false
	}
}

func (d *decoder) tasks(n *yaml.Node) []Task {
	if n.Kind != yaml.SequenceNode {
		d.errorf(errs.CodeStructural, n, "tasks", "tasks must be a list, got %s", describe(n))
		return nil
	}
	out := make([]Task, 0, len(n.Content))
	for i, c := range n.Content {
		t := d.task(d.resolve(c), fmt.Sprintf("tasks[%d]", i))
		if d.halted() {
			return out
		}
		out = append(out, t)
	}
	return out
}

func (d *decoder) task(n *yaml.Node, path string) Task {
	var t Task
	if n == nil || n.Kind != yaml.MappingNode {
		d.errorf(errs.CodeStructural, n, path, "task must be a mapping, got %s", describe(n))
		return t
	}
	f := d.fields(n, path, "command", "slot", "count", "attributes")
	if d.halted() {
		return t
	}

	if c := f["command"]; c == nil {
		d.errorf(errs.CodeStructural, n, path, "missing required key %q", "command")
	} else if c.Kind != yaml.SequenceNode || len(c.Content) == 0 {
		d.errorf(errs.CodeStructural, c, path+".command", "command must be a non-empty list of strings, got %s", describe(c))
	} else {
		for i, arg := range c.Content {
			arg = d.resolve(arg)
			s, ok := stringValue(arg)
			if !ok {
				d.errorf(errs.CodeStructural, arg, fmt.Sprintf("%s.command[%d]", path, i), "command arguments must be strings, got %s", describe(arg))
				if d.halted() {
					return t
				}
				continue
			}
			t.Command = append(t.Command, s)
		}
	}
	if d.halted() {
		return t
	}

	if s := f["slot"]; s == nil {
		d.errorf(errs.CodeStructural, n, path, "missing required key %q", "slot")
	} else if v, ok := stringValue(s); !ok || v == "" {
		d.errorf(errs.CodeStructural, s, path+".slot", "slot must be a non-empty string, got %s", describe(s))
	} else {
		t.Slot = v
		d.slots = append(d.slots, slotRef{slot: v, path: path + ".slot", node: s})
	}
	if d.halted() {
		return t
	}

	if c := f["count"]; c == nil {
		d.errorf(errs.CodeStructural, n, path, "missing required key %q", "count")
	} else {
		t.Count = d.taskCount(c, path+".count")
	}
	if d.halted() {
		return t
	}

	if a := f["attributes"]; a != nil {
		if a.Kind != yaml.MappingNode {
			d.errorf(errs.CodeStructural, a, path+".attributes", "attributes must be a mapping, got %s", describe(a))
		} else {
			t.Attributes = d.freeform(a, path+".attributes")
		}
	}
	return t
}

func (d *decoder) taskCount(n *yaml.Node, path string) TaskCount {
	var tc TaskCount
	if n.Kind != yaml.MappingNode {
		d.errorf(errs.CodeStructural, n, path, "count must be a mapping, got %s", describe(n))
		return tc
	}
	f := d.fields(n, path, "per_slot", "per_node", "total")
	if d.halted() {
		return tc
	}
	set := 0
	for _, key := range []string{"per_slot", "per_node", "total"} {
		v := f[key]
		if v == nil {
			continue
		}
		set++
		c, ok := intValue(v)
		if !ok {
			d.errorf(errs.CodeStructural, v, path+"."+key, "%s must be an integer, got %s", key, describe(v))
		} else if c < 1 {
			d.errorf(errs.CodeSemantic, v, path+"."+key, "%s must be >= 1, got %d", key, c)
		} else {
			switch key {
			case "per_slot":
				tc.PerSlot = c
			case "per_node":
				tc.PerNode = c
			case "total":
				tc.Total = c
			}
		}
		if d.halted() {
			return tc
		}
	}
	switch {
	case set == 0:
		d.errorf(errs.CodeStructural, n, path, "count must specify one of per_slot, per_node or total")
	case set > 1:
		d.errorf(errs.CodeStructural, n, path, "count must specify only one of per_slot, per_node or total")
	}
	return tc
}

// checkLabels reports every label that was already used by an earlier
// vertex anywhere in the tree.
func (d *decoder) checkLabels() {
	d.byLabel = make(map[string]labelRef, len(d.labels))
	for _, l := range d.labels {
		if prev, dup := d.byLabel[l.label]; dup {
			d.errorf(errs.CodeSemantic, l.node, l.path+".label", "duplicate label %q (first defined at %s)", l.label, prev.path)
			if d.halted() {
				return
			}
			continue
		}
		d.byLabel[l.label] = l
	}
}

func (d *decoder) checkSlots() {
	for _, s := range d.slots {
		l, ok := d.byLabel[s.slot]
		switch {
		case !ok:
			d.errorf(errs.CodeSemantic, s.node, s.path, "slot label %q does not match any resource label", s.slot)
		case l.kind != KindSlot:
			d.errorf(errs.CodeSemantic, s.node, s.path, "slot label %q refers to a %s resource, not a slot", s.slot, l.kind)
		default:
			continue
		}
		if d.halted() {
			return
		}
	}
}

// fields indexes a mapping by key, reporting unknown and repeated keys.
func (d *decoder) fields(n *yaml.Node, path string, allowed ...string) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		key, ok := stringValue(k)
		if !ok {
			d.errorf(errs.CodeStructural, k, path, "mapping keys must be strings, got %s", describe(k))
		} else if _, dup := out[key]; dup {
			d.errorf(errs.CodeStructural, k, join(path, key), "duplicate key %q", key)
		} else if !contains(allowed, key) {
			d.errorf(errs.CodeStructural, k, join(path, key), "unknown key %q", key)
		} else {
			out[key] = d.resolve(v)
			continue
		}
		if d.halted() {
			return out
		}
	}
	return out
}

func (d *decoder) freeform(n *yaml.Node, path string) map[string]interface{} {
	m := map[string]interface{}{}
	if err := n.Decode(&m); err != nil {
		d.errs = append(d.errs, errs.New(errs.CodeStructural, "invalid mapping", err).WithPath(path).At(n.Line, n.Column))
		return nil
	}
	return m
}

func (d *decoder) resolve(n *yaml.Node) *yaml.Node {
	for i := 0; n != nil && n.Kind == yaml.AliasNode && i <= d.maxDepth; i++ {
		n = n.Alias
	}
	return n
}

func lookup(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func intValue(n *yaml.Node) (int, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return 0, false
	}
	switch n.ShortTag() {
	case "!!int":
		var v int
		if err := n.Decode(&v); err != nil {
			return 0, false
		}
		return v, true
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	case "!!str":
		v, err := strconv.Atoi(strings.TrimSpace(n.Value))
		return v, err == nil
	}
	return 0, false
}

func stringValue(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", false
	}
	return n.Value, true
}

func boolValue(n *yaml.Node) (bool, bool) {
	if n == nil || n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" {
		return false, false
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, false
	}
	return b, true
}

func describe(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.AliasNode:
		return "alias"
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str":
			return "string"
		case "!!int":
			return "integer"
		case "!!float":
			return "number"
		case "!!bool":
			return "boolean"
		case "!!null":
			return "null"
		}
		return strings.TrimPrefix(n.ShortTag(), "!!")
	}
	return "unknown node"
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
