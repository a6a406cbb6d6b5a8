package patch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tangram/internal/ir"
)

// Cycle severity levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// CycleWarning represents a loop in a patch's dependency graph.
//
// Chain loops are errors: a chain that depends on itself can never be
// computed, and evaluating one aborts every tick. Pulse loops are warnings
// because they may be intentional feedback that a cycler's ranges stop; the
// engine's per-tick fire quota catches the ones that don't.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "warning"
}

// AnalyzeCycles performs static cycle analysis on a patch.
//
// The algorithm:
//  1. Build chain → referenced chain and pulse → fired pulse graphs
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Chain cycles come first, then pulse cycles. Results are deterministic:
// nodes are visited in declaration order.
func AnalyzeCycles(p *ir.Patch) []CycleWarning {
	var warnings []CycleWarning

	chains := newDependencyGraph()
	for _, c := range p.Chains {
		chains.addNode(c.Name)
	}
	for _, c := range p.Chains {
		for _, ref := range c.Refs() {
			chains.addEdge(c.Name, ref)
		}
	}
	for _, scc := range chains.cycles() {
		path := reconstructCyclePath(scc, chains)
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("chain cycle: %s", strings.Join(path, " → ")),
			Level:   LevelError,
		})
	}

	pulses := newDependencyGraph()
	for _, ps := range p.Pulses {
		pulses.addNode(ps.Name)
	}
	for _, ps := range p.Pulses {
		for _, target := range ps.Fires() {
			pulses.addEdge(ps.Name, target)
		}
	}
	for _, scc := range pulses.cycles() {
		path := reconstructCyclePath(scc, pulses)
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("pulse feedback loop: %s", strings.Join(path, " → ")),
			Level:   LevelWarning,
		})
	}

	return warnings
}

// dependencyGraph is a directed graph over declared names.
// Edges to undeclared names are dropped; Validate reports those.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{edges: make(map[string][]string)}
}

func (g *dependencyGraph) addNode(n string) {
	if _, ok := g.edges[n]; ok {
		return
	}
	g.nodes = append(g.nodes, n)
	g.edges[n] = []string{}
}

func (g *dependencyGraph) addEdge(from, to string) {
	if _, ok := g.edges[to]; !ok {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

// cycles returns the SCCs that form loops.
func (g *dependencyGraph) cycles() [][]string {
	var out [][]string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || slices.Contains(g.edges[scc[0]], scc[0]) {
			out = append(out, scc)
		}
	}
	return out
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of node names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(g *dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath builds a closed path through an SCC, starting at the
// member declared first.
func reconstructCyclePath(scc []string, g *dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	for _, n := range g.nodes {
		if members[n] {
			start = n
			break
		}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		var next string
		for _, w := range g.edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}
