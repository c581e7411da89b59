package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CircularDependencyError reports the cycle that a rejected edge would
// have created
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is the resource dependency graph: plain adjacency maps in both
// directions, no back-pointers. Cycles are rejected at insertion time
// so they can never surface later at acquire or shutdown.
//
// Edges may reference ids that have not been registered yet; the node
// materializes when its own registration arrives.
type Graph struct {
	mu           sync.RWMutex
	dependencies map[string][]string // id -> ids it depends on
	dependents   map[string][]string // id -> ids that depend on it
	nodes        map[string]bool     // explicitly registered ids
}

// New returns an empty graph
func New() *Graph {
	return &Graph{
		dependencies: make(map[string][]string),
		dependents:   make(map[string][]string),
		nodes:        make(map[string]bool),
	}
}

// Register adds a node and its dependency edges atomically. If any edge
// would create a cycle, nothing is changed and a
// CircularDependencyError identifies the cycle.
func (g *Graph) Register(id string, deps []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		return fmt.Errorf("graph: empty node id")
	}
	for _, dep := range deps {
		if dep == id {
			return fmt.Errorf("graph: node %s cannot depend on itself", id)
		}
	}

	// Tentatively insert, then verify acyclicity from the new node.
	// Roll back on failure so a rejected registration leaves the graph
	// unchanged.
	prevDeps, hadDeps := g.dependencies[id]
	g.nodes[id] = true
	g.dependencies[id] = append(append([]string(nil), prevDeps...), deps...)
	for _, dep := range deps {
		g.dependents[dep] = append(g.dependents[dep], id)
	}

	if cycle := g.findCycle(id); cycle != nil {
		if hadDeps {
			g.dependencies[id] = prevDeps
		} else {
			delete(g.dependencies, id)
		}
		for _, dep := range deps {
			lst := g.dependents[dep]
			g.dependents[dep] = lst[:len(lst)-1]
			if len(g.dependents[dep]) == 0 {
				delete(g.dependents, dep)
			}
		}
		delete(g.nodes, id)
		return &CircularDependencyError{Cycle: cycle}
	}
	return nil
}

// Remove deletes a node and every edge touching it
func (g *Graph) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dep := range g.dependencies[id] {
		g.dependents[dep] = without(g.dependents[dep], id)
	}
	for _, dependent := range g.dependents[id] {
		g.dependencies[dependent] = without(g.dependencies[dependent], id)
	}
	delete(g.dependencies, id)
	delete(g.dependents, id)
	delete(g.nodes, id)
}

// Dependencies returns the ids the given node depends on
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependencies[id]...)
}

// Dependents returns the ids that depend directly on the given node.
// This is the transpose walk used for degraded-signal cascades.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// Nodes returns every id in the graph, sorted
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.allIDs()
	sort.Strings(ids)
	return ids
}

// InitOrder returns a topological order with dependencies before
// dependents, computed with Kahn's algorithm. Ties are broken
// alphabetically so the order is deterministic.
func (g *Graph) InitOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// in-degree = number of unresolved dependencies
	inDegree := make(map[string]int)
	for _, id := range g.allIDs() {
		inDegree[id] = len(g.dependencies[id])
	}

	var frontier []string
	for id, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(inDegree))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var unlocked []string
		for _, dependent := range g.dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sort.Strings(unlocked)
		frontier = append(frontier, unlocked...)
		sort.Strings(frontier)
	}

	// Unreachable when insert-time cycle checking works, kept as a
	// safety net for future mutation paths.
	if len(order) != len(inDegree) {
		return nil, &CircularDependencyError{Cycle: g.unprocessed(order, inDegree)}
	}
	return order, nil
}

// ShutdownOrder is the reverse of InitOrder: dependents are drained
// before the resources they depend on
func (g *Graph) ShutdownOrder() ([]string, error) {
	order, err := g.InitOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// findCycle runs a depth-first walk from start along dependency edges
// and returns the cycle path if the walk re-enters the stack. Caller
// holds the lock.
func (g *Graph) findCycle(start string) []string {
	onStack := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, dep := range g.dependencies[id] {
			if onStack[dep] {
				// close the loop for the error message
				for i, p := range path {
					if p == dep {
						return append(append([]string(nil), path[i:]...), dep)
					}
				}
				return []string{dep, id, dep}
			}
			if !visited[dep] {
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]
		return nil
	}

	return dfs(start)
}

// allIDs collects every id mentioned as a node or an edge endpoint.
// Caller holds the lock.
func (g *Graph) allIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range g.nodes {
		add(id)
	}
	for id, deps := range g.dependencies {
		add(id)
		for _, dep := range deps {
			add(dep)
		}
	}
	return ids
}

func (g *Graph) unprocessed(order []string, inDegree map[string]int) []string {
	done := make(map[string]bool, len(order))
	for _, id := range order {
		done[id] = true
	}
	var rest []string
	for id := range inDegree {
		if !done[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return rest
}

func without(lst []string, id string) []string {
	out := lst[:0]
	for _, v := range lst {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
