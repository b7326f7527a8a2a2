package orchestration

import (
	"encoding/json"
	"sort"

	"github.com/imamik/exposer/internal/compose"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/namespace"
)

// KindInternal marks failures that carry no classification.
const KindInternal graph.FailureKind = "InternalError"

// Failure is one workload that produced no graph.
type Failure struct {
	Workload string            `json:"workload"`
	Kind     graph.FailureKind `json:"kind"`
	Message  string            `json:"message"`
	Err      error             `json:"-"`
}

func newFailure(workload string, err error) Failure {
	kind, ok := graph.KindOf(err)
	if !ok {
		kind = KindInternal
	}
	return Failure{Workload: workload, Kind: kind, Message: err.Error(), Err: err}
}

// Warning is a subsystem that never became ready, with the workloads it blocked.
type Warning struct {
	Subsystem string   `json:"subsystem"`
	Message   string   `json:"message"`
	Workloads []string `json:"workloads,omitempty"`
}

// Export lists the identifiers created for one workload.
type Export struct {
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
	Route     string `json:"route"`
	Hostname  string `json:"hostname"`
	DNSRecord string `json:"dnsRecord,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// Result is the outcome of one fleet run.
type Result struct {
	Fleet string `json:"fleet"`
	RunID string `json:"runID"`

	// Shared holds namespaces and credential requests, emitted before any graph.
	Shared []*graph.Object `json:"-"`

	// Graphs holds one graph per successfully composed workload, in fleet order.
	Graphs []*graph.Graph `json:"-"`

	Failures   []Failure              `json:"failures,omitempty"`
	Warnings   []Warning              `json:"warnings,omitempty"`
	Advisories []credentials.Advisory `json:"-"`
	Tokens     []graph.Token          `json:"-"`
	Exports    map[string]Export      `json:"exports"`
}

// Ordered flattens the result into one emission order: shared objects first,
// then each graph in dependency order. Objects present in several places are
// emitted once, at their first position.
func (r *Result) Ordered() []*graph.Object {
	seen := make(map[graph.ObjectKey]bool)
	var out []*graph.Object
	add := func(o *graph.Object) {
		if seen[o.Key] {
			return
		}
		seen[o.Key] = true
		out = append(out, o)
	}
	for _, o := range r.Shared {
		add(o)
	}
	for _, g := range r.Graphs {
		for _, o := range g.Objects() {
			add(o)
		}
	}
	return out
}

// Graph returns the graph of a workload.
func (r *Result) Graph(workload string) (*graph.Graph, bool) {
	for _, g := range r.Graphs {
		if g.Workload() == workload {
			return g, true
		}
	}
	return nil, false
}

// Failure returns the failure of a workload.
func (r *Result) Failure(workload string) (Failure, bool) {
	for _, f := range r.Failures {
		if f.Workload == workload {
			return f, true
		}
	}
	return Failure{}, false
}

// Succeeded returns the names of composed workloads.
func (r *Result) Succeeded() []string {
	out := make([]string, 0, len(r.Graphs))
	for _, g := range r.Graphs {
		out = append(out, g.Workload())
	}
	return out
}

// Reject records a failure for a composed workload discovered after the run,
// such as an apply rejected by the control plane. The workload's graph and
// export are dropped.
func (r *Result) Reject(workload string, err error) {
	graphs := r.Graphs[:0]
	for _, g := range r.Graphs {
		if g.Workload() != workload {
			graphs = append(graphs, g)
		}
	}
	r.Graphs = graphs
	delete(r.Exports, workload)
	r.Failures = append(r.Failures, newFailure(workload, err))
}

// ExportsJSON renders the exported identifiers.
func (r *Result) ExportsJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func exportOf(g *graph.Graph) Export {
	var e Export
	for _, o := range g.Objects() {
		switch o.Key.Kind {
		case namespace.Kind:
			e.Namespace = o.Key.Name
		case "Service":
			e.Service = o.Key.String()
			if e.Namespace == "" {
				e.Namespace = o.Key.Namespace
			}
		case compose.RouteKind:
			e.Route = o.Key.String()
			if hosts := routeHostnames(o); len(hosts) > 0 {
				e.Hostname = hosts[0]
			}
		case compose.DNSKind:
			e.DNSRecord = o.Key.String()
		case compose.FilterKind:
			e.Filter = o.Key.String()
		}
	}
	return e
}

func routeHostnames(o *graph.Object) []string {
	spec, _ := o.Desired.Object["spec"].(map[string]any)
	raw, _ := spec["hostnames"].([]any)
	out := make([]string, 0, len(raw))
	for _, h := range raw {
		if s, ok := h.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
