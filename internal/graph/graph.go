package graph

import (
	"fmt"
	"sort"
)

// Graph is the ordered set of objects emitted for one workload.
//
// Objects are accepted only once every dependency is satisfied: object
// dependencies must already be in the graph or provided externally, and
// readiness dependencies must have been marked ready.
type Graph struct {
	workload string
	objects  []*Object
	index    map[ObjectKey]int
	provided map[ObjectKey]bool
	ready    map[string]bool
}

// New creates an empty graph for a workload.
func New(workload string) *Graph {
	return &Graph{
		workload: workload,
		index:    make(map[ObjectKey]int),
		provided: make(map[ObjectKey]bool),
		ready:    make(map[string]bool),
	}
}

// Workload returns the workload name the graph belongs to.
func (g *Graph) Workload() string {
	return g.workload
}

// Provide records objects requested outside this graph (for example fleet-wide
// credential objects) that members of the graph may depend on.
func (g *Graph) Provide(keys ...ObjectKey) {
	for _, k := range keys {
		g.provided[k] = true
	}
}

// MarkReady records a resolved readiness token. Unready tokens are ignored.
func (g *Graph) MarkReady(t Token) {
	if t.Ready {
		g.ready[t.Subsystem] = true
	}
}

// Append adds an object after checking its dependency-set.
func (g *Graph) Append(o *Object) error {
	if o == nil {
		return fmt.Errorf("cannot append nil object")
	}
	if _, dup := g.index[o.Key]; dup {
		return fmt.Errorf("object %s already in graph", o.Key)
	}

	for _, d := range o.DependsOn {
		if d.IsReadiness() {
			if !g.ready[d.Subsystem] {
				return fmt.Errorf("object %s depends on subsystem %s which is not ready", o.Key, d.Subsystem)
			}
			continue
		}
		if _, ok := g.index[d.Object]; ok {
			continue
		}
		if g.provided[d.Object] {
			continue
		}
		return fmt.Errorf("object %s depends on %s which has not been requested", o.Key, d.Object)
	}

	g.index[o.Key] = len(g.objects)
	g.objects = append(g.objects, o)
	return nil
}

// Objects returns the objects in emission order.
func (g *Graph) Objects() []*Object {
	out := make([]*Object, len(g.objects))
	copy(out, g.objects)
	return out
}

// Get returns the object with the given key.
func (g *Graph) Get(key ObjectKey) (*Object, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.objects[i], true
}

// ByKind returns the objects of one kind in emission order.
func (g *Graph) ByKind(kind string) []*Object {
	var out []*Object
	for _, o := range g.objects {
		if o.Key.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// Keys returns the object identities in emission order.
func (g *Graph) Keys() []ObjectKey {
	keys := make([]ObjectKey, len(g.objects))
	for i, o := range g.objects {
		keys[i] = o.Key
	}
	return keys
}

// Len returns the number of objects.
func (g *Graph) Len() int {
	return len(g.objects)
}

// Subsystems returns the sorted set of readiness tokens the graph depends on.
func (g *Graph) Subsystems() []string {
	seen := make(map[string]bool)
	for _, o := range g.objects {
		for _, d := range o.DependsOn {
			if d.IsReadiness() {
				seen[d.Subsystem] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
