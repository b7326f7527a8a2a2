// Package graph models the objects a workload expands into.
//
// An [Object] is one unit the control plane reconciles: its identity
// ([ObjectKey]), its desired state and the set of [Dependency] values that
// must be satisfied before it may be emitted. A [Graph] accepts objects only
// in dependency order, so the emission order of a graph is always a valid
// topological order of its dependency edges.
//
// The package also defines the failure kinds shared by every stage of the
// pipeline (see [Error]).
package graph
