// Package compose expands one workload descriptor into its object graph.
//
// Which objects exist is decided by a fixed topology table keyed by the
// workload's feature set (storage, forward auth, auth sidecar, pull secrets,
// DNS, TLS). Every object's dependency-set is checked as it is added, and a
// workload's graph is returned whole or not at all.
package compose
