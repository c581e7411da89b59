/*
Package graph maintains the resource dependency graph.

The graph is a pair of adjacency maps (dependencies and their
transpose). Registration inserts a node with its edges and immediately
runs a depth-first cycle check from the new node; an edge that would
close a cycle rejects the whole registration and leaves the graph
untouched, so cycles can never surface later at acquire time.

Ordering:

  - InitOrder: Kahn's algorithm, dependencies before dependents.
    Registering A→B→C yields [C, B, A].
  - ShutdownOrder: the exact reverse, so no dependent is left holding a
    reference to an already-terminated dependency.

Both orders break ties alphabetically to stay deterministic across
runs.
*/
package graph
