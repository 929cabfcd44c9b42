package plan

import (
	"sort"

	"github.com/pgschema/pgdiff/internal/ir"
)

// Edge says From must exist before To. Weak edges only express a
// preference and may be dropped to break a cycle.
type Edge struct {
	From ir.Key
	To   ir.Key
	Weak bool
	// Via lists the foreign keys behind a weak table ordering edge.
	Via []ir.Key
}

// Graph is a directed dependency graph over object keys.
type Graph struct {
	nodes map[ir.Key]bool
	out   map[ir.Key]map[ir.Key]*Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[ir.Key]bool),
		out:   make(map[ir.Key]map[ir.Key]*Edge),
	}
}

// AddNode registers a key without edges.
func (g *Graph) AddNode(k ir.Key) {
	g.nodes[k] = true
}

// AddEdge records an edge. Self loops are ignored, and a hard edge replaces
// a weak one between the same pair.
func (g *Graph) AddEdge(e Edge) {
	if e.From == e.To {
		return
	}
	g.nodes[e.From] = true
	g.nodes[e.To] = true

	targets := g.out[e.From]
	if targets == nil {
		targets = make(map[ir.Key]*Edge)
		g.out[e.From] = targets
	}
	existing, ok := targets[e.To]
	switch {
	case !ok:
		cp := e
		cp.Via = append([]ir.Key(nil), e.Via...)
		targets[e.To] = &cp
	case existing.Weak && !e.Weak:
		existing.Weak = false
		existing.Via = nil
	case existing.Weak && e.Weak:
		existing.Via = append(existing.Via, e.Via...)
	}
}

// HasNode reports whether k is part of the graph.
func (g *Graph) HasNode(k ir.Key) bool {
	return g.nodes[k]
}

// Edge returns the edge between two keys, or nil.
func (g *Graph) Edge(from, to ir.Key) *Edge {
	return g.out[from][to]
}

// Edges returns the outgoing edges of k ordered by target key.
func (g *Graph) Edges(k ir.Key) []*Edge {
	edges := make([]*Edge, 0, len(g.out[k]))
	for _, e := range g.out[k] {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To.Less(edges[j].To) })
	return edges
}

// Dependents returns the keys that directly depend on k.
func (g *Graph) Dependents(k ir.Key) []ir.Key {
	var keys []ir.Key
	for _, e := range g.Edges(k) {
		keys = append(keys, e.To)
	}
	return keys
}

// Nodes returns every key in sorted order.
func (g *Graph) Nodes() []ir.Key {
	keys := make([]ir.Key, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (g *Graph) removeEdge(from, to ir.Key) {
	delete(g.out[from], to)
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for k := range g.nodes {
		c.nodes[k] = true
	}
	for _, targets := range g.out {
		for _, e := range targets {
			c.AddEdge(*e)
		}
	}
	return c
}

// Components returns the strongly connected components with more than one
// member, each sorted, in order of their smallest key.
func (g *Graph) Components() [][]ir.Key {
	index := make(map[ir.Key]int)
	low := make(map[ir.Key]int)
	onStack := make(map[ir.Key]bool)
	var stack []ir.Key
	var comps [][]ir.Key
	next := 0

	var visit func(v ir.Key)
	visit = func(v ir.Key) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.Edges(v) {
			w := e.To
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			var comp []ir.Key
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				sortKeys(comp)
				comps = append(comps, comp)
			}
		}
	}

	for _, k := range g.Nodes() {
		if _, seen := index[k]; !seen {
			visit(k)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0].Less(comps[j][0]) })
	return comps
}

// breakWeakCycles removes every weak edge that joins two members of the
// same cycle and returns the removed edges.
func (g *Graph) breakWeakCycles() []*Edge {
	var cut []*Edge
	for _, comp := range g.Components() {
		members := make(map[ir.Key]bool, len(comp))
		for _, k := range comp {
			members[k] = true
		}
		for _, k := range comp {
			for _, e := range g.Edges(k) {
				if e.Weak && members[e.To] {
					cut = append(cut, e)
					g.removeEdge(e.From, e.To)
				}
			}
		}
	}
	return cut
}

// induced returns, for each key in steps, the step keys reachable from it
// through paths whose intermediate nodes are not steps.
func (g *Graph) induced(steps map[ir.Key]bool) map[ir.Key][]ir.Key {
	succ := make(map[ir.Key][]ir.Key, len(steps))
	for s := range steps {
		seen := map[ir.Key]bool{s: true}
		pending := []ir.Key{s}
		for len(pending) > 0 {
			n := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			for _, e := range g.Edges(n) {
				if seen[e.To] {
					continue
				}
				seen[e.To] = true
				if steps[e.To] {
					succ[s] = append(succ[s], e.To)
					continue
				}
				pending = append(pending, e.To)
			}
		}
	}
	return succ
}

// reachable returns every node reachable from roots over hard edges,
// excluding the roots themselves unless they are reached again.
func (g *Graph) reachable(roots []ir.Key) map[ir.Key]bool {
	seen := make(map[ir.Key]bool)
	pending := append([]ir.Key(nil), roots...)
	for len(pending) > 0 {
		n := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for _, e := range g.Edges(n) {
			if e.Weak || seen[e.To] {
				continue
			}
			seen[e.To] = true
			pending = append(pending, e.To)
		}
	}
	return seen
}

// topoSort orders keys with Kahn's algorithm, always taking the smallest
// ready key. With reverse set, dependents come before their dependencies.
func topoSort(succ map[ir.Key][]ir.Key, keys []ir.Key, reverse bool) ([]ir.Key, error) {
	edges := make(map[ir.Key][]ir.Key, len(keys))
	indegree := make(map[ir.Key]int, len(keys))
	for _, k := range keys {
		indegree[k] = 0
	}
	for from, targets := range succ {
		if _, ok := indegree[from]; !ok {
			continue
		}
		for _, to := range targets {
			if _, ok := indegree[to]; !ok {
				continue
			}
			if reverse {
				from, to := to, from
				edges[from] = append(edges[from], to)
				indegree[to]++
				continue
			}
			edges[from] = append(edges[from], to)
			indegree[to]++
		}
	}

	var ready []ir.Key
	for _, k := range keys {
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}
	sortKeys(ready)

	order := make([]ir.Key, 0, len(keys))
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		for _, to := range edges[k] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
				sortKeys(ready)
			}
		}
	}

	if len(order) != len(keys) {
		var stuck []ir.Key
		for _, k := range keys {
			if indegree[k] > 0 {
				stuck = append(stuck, k)
			}
		}
		sortKeys(stuck)
		return nil, &CycleError{Members: stuck}
	}
	return order, nil
}

func sortKeys(keys []ir.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
