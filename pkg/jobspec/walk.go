package jobspec

import "math"

// ResourceCount is one observation produced by Walk: the vertex kind and
// its own count, plus the count multiplied through its ancestors.
type ResourceCount struct {
	Kind  ResourceKind `json:"type"`
	Count int          `json:"count"`
	Total int          `json:"total"`
	Depth int          `json:"depth"`
	Label string       `json:"label,omitempty"`
}

// Walk visits the resource tree depth-first in pre-order and returns one
// observation per vertex. Repeated kinds are not merged. The tree must
// already have passed validation; totals of hand-built trees saturate at
// math.MaxInt.
func Walk(resources []ResourceNode) []ResourceCount {
	var out []ResourceCount
	var visit func(nodes []ResourceNode, depth, mult int)
	visit = func(nodes []ResourceNode, depth, mult int) {
		for i := range nodes {
			n := &nodes[i]
			total := mulSat(mult, n.Count)
			out = append(out, ResourceCount{
				Kind:  n.Kind,
				Count: n.Count,
				Total: total,
				Depth: depth,
				Label: n.Label,
			})
			visit(n.Children, depth+1, total)
		}
	}
	visit(resources, 0, 1)
	return out
}

// ResourceCounts walks the jobspec's resource tree.
func (js *Jobspec) ResourceCounts() []ResourceCount {
	if js == nil {
		return nil
	}
	return Walk(js.Resources)
}

// KindTotal is the aggregate number of resources of one kind.
type KindTotal struct {
	Kind  ResourceKind `json:"type"`
	Total int          `json:"total"`
}

// Totals aggregates walk observations by kind, summing the cumulative
// counts. Kinds are ordered by first appearance.
func Totals(counts []ResourceCount) []KindTotal {
	index := make(map[ResourceKind]int)
	var out []KindTotal
	for _, c := range counts {
		i, ok := index[c.Kind]
		if !ok {
			i = len(out)
			index[c.Kind] = i
			out = append(out, KindTotal{Kind: c.Kind})
		}
		out[i].Total = addSat(out[i].Total, c.Total)
	}
	return out
}

func mulSat(a, b int) int {
	if a <= 0 || b <= 0 {
		return a * b
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

func addSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
