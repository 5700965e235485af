// Package graph provides the artifact dependency graph: producer → consumer
// edges between named artifacts, cycle detection, transitive closure, and
// deterministic topological ordering.
package graph

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// CyclicDependencyError is returned when no topological order exists.
type CyclicDependencyError struct {
	// Cycle lists the nodes of one cycle in edge order. Which cycle is
	// reported is unspecified when several exist.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "cyclic dependency detected"
	}
	path := append(append([]string(nil), e.Cycle...), e.Cycle[0])
	return "cyclic dependency: " + strings.Join(path, " -> ")
}

// UnknownNodeError is returned when an operation names a node the graph
// has never seen.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Name)
}

type edge struct{ from, to int }

// Graph is a directed graph of artifact names. Nodes are identified by name
// and remember the order in which they were first introduced; that order is
// the tie-break for every ordered result.
//
// A Graph is not safe for concurrent mutation. Once built it is treated as
// an immutable snapshot and may be read from multiple goroutines.
type Graph struct {
	index     map[string]int
	names     []string
	consumers [][]int
	producers [][]int
	edges     map[edge]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[edge]struct{}),
	}
}

func (g *Graph) node(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.names)
	g.index[name] = i
	g.names = append(g.names, name)
	g.consumers = append(g.consumers, nil)
	g.producers = append(g.producers, nil)
	return i
}

// AddNode introduces name as a node with no edges. Adding an existing node
// is a no-op and does not change its insertion position.
func (g *Graph) AddNode(name string) {
	g.node(name)
}

// AddDependency records that output consumes input. Adding the same edge
// twice has no additional effect. Cycles are not rejected here; use
// HasCycle once construction is complete.
func (g *Graph) AddDependency(input, output string) {
	from, to := g.node(input), g.node(output)
	e := edge{from: from, to: to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	g.consumers[from] = append(g.consumers[from], to)
	g.producers[to] = append(g.producers[to], from)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.names) }

// HasNode reports whether name is a node of the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Consumers returns the direct consumers of name in edge insertion order.
func (g *Graph) Consumers(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.consumers[i])
}

// Producers returns the direct inputs of name in edge insertion order.
func (g *Graph) Producers(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.producers[i])
}

func (g *Graph) namesOf(idx []int) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = g.names[n]
	}
	return out
}

// HasCycle reports whether the edge set contains any cycle, including
// self-loops. Every node is visited, so disconnected components are covered.
func (g *Graph) HasCycle() bool {
	return g.FindCycle() != nil
}

const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // fully explored
)

type frame struct {
	node int
	next int // index into consumers[node] of the next edge to follow
}

// FindCycle returns the nodes of one cycle in edge order, or nil when the
// graph is acyclic. The traversal is an iterative three-color DFS, so its
// termination does not depend on recursion depth.
func (g *Graph) FindCycle() []string {
	color := make([]uint8, len(g.names))
	for start := range g.names {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []frame{{node: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.consumers[top.node]) {
				c := g.consumers[top.node][top.next]
				top.next++
				switch color[c] {
				case white:
					color[c] = gray
					stack = append(stack, frame{node: c})
				case gray:
					return g.cycleFrom(stack, c)
				}
				continue
			}
			color[top.node] = black
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// cycleFrom extracts the path from c to the top of the DFS stack. The edge
// top → c closes the cycle.
func (g *Graph) cycleFrom(stack []frame, c int) []string {
	pos := len(stack) - 1
	for pos > 0 && stack[pos].node != c {
		pos--
	}
	cycle := make([]string, 0, len(stack)-pos)
	for _, f := range stack[pos:] {
		cycle = append(cycle, g.names[f.node])
	}
	return cycle
}

// reach marks every node reachable from start through adj, excluding start
// itself unless start lies on a reachable cycle.
func (g *Graph) reach(start int, adj [][]int) []bool {
	seen := make([]bool, len(g.names))
	queue := append([]int(nil), adj[start]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		queue = append(queue, adj[n]...)
	}
	return seen
}

func (g *Graph) collect(seen []bool) []string {
	var out []string
	for i, ok := range seen {
		if ok {
			out = append(out, g.names[i])
		}
	}
	return out
}

// Descendants returns every node transitively reachable from name through
// outgoing edges, in insertion order. name itself is included only when it
// sits on a cycle reachable from itself. Unknown names have no descendants.
func (g *Graph) Descendants(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.collect(g.reach(i, g.consumers))
}

// Ancestors returns every node from which name is reachable, in insertion order.
func (g *Graph) Ancestors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.collect(g.reach(i, g.producers))
}

// AffectedBy returns the affected closure of changed: the changed names plus
// all of their descendants. Known nodes come first in insertion order,
// followed by changed names the graph does not know, in the order given.
func (g *Graph) AffectedBy(changed ...string) []string {
	if len(changed) == 0 {
		return nil
	}
	seen := make([]bool, len(g.names))
	var unknown []string
	unknownSeen := make(map[string]bool)
	for _, name := range changed {
		i, ok := g.index[name]
		if !ok {
			if !unknownSeen[name] {
				unknownSeen[name] = true
				unknown = append(unknown, name)
			}
			continue
		}
		seen[i] = true
		for n, ok := range g.reach(i, g.consumers) {
			if ok {
				seen[n] = true
			}
		}
	}
	return append(g.collect(seen), unknown...)
}

// TopologicalOrder returns nodes in an order where every input precedes its
// consumers. With no arguments every node is ordered. Ties are broken by
// insertion order, so identically constructed graphs always yield the same
// sequence. Ordering is computed over the whole graph and then restricted,
// which keeps transitive constraints through omitted nodes intact; a cycle
// anywhere in the graph therefore fails the call.
func (g *Graph) TopologicalOrder(nodes ...string) ([]string, error) {
	var want []bool
	if len(nodes) > 0 {
		want = make([]bool, len(g.names))
		for _, name := range nodes {
			i, ok := g.index[name]
			if !ok {
				return nil, &UnknownNodeError{Name: name}
			}
			want[i] = true
		}
	}

	inDegree := make([]int, len(g.names))
	for i := range g.names {
		inDegree[i] = len(g.producers[i])
	}

	ready := &minHeap{}
	for i, deg := range inDegree {
		if deg == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]string, 0, len(g.names))
	processed := 0
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		processed++
		if want == nil || want[n] {
			order = append(order, g.names[n])
		}
		for _, c := range g.consumers[n] {
			inDegree[c]--
			if inDegree[c] == 0 {
				heap.Push(ready, c)
			}
		}
	}

	if processed != len(g.names) {
		return nil, &CyclicDependencyError{Cycle: g.FindCycle()}
	}
	return order, nil
}

// Tiers groups nodes into levels using Kahn's algorithm: level 0 holds nodes
// without inputs and every node sits one level after its deepest input.
// Nodes in the same level have no path between them. Each level is in
// insertion order.
func (g *Graph) Tiers() ([][]string, error) {
	if len(g.names) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(g.names))
	var queue []int
	for i := range g.names {
		inDegree[i] = len(g.producers[i])
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var tiers [][]string
	processed := 0
	for len(queue) > 0 {
		sort.Ints(queue) // deterministic ordering
		tiers = append(tiers, g.namesOf(queue))
		processed += len(queue)

		var next []int
		for _, n := range queue {
			for _, c := range g.consumers[n] {
				inDegree[c]--
				if inDegree[c] == 0 {
					next = append(next, c)
				}
			}
		}
		queue = next
	}

	if processed != len(g.names) {
		return nil, &CyclicDependencyError{Cycle: g.FindCycle()}
	}
	return tiers, nil
}
