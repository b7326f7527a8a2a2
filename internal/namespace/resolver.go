// Package namespace resolves the isolation boundary of each workload: either
// an externally supplied namespace, or a new one carrying baseline isolation labels.
package namespace

import (
	"fmt"
	"sort"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/util/labels"
	"github.com/imamik/exposer/internal/util/naming"
)

// Kind is the object kind of namespace objects.
const Kind = "Namespace"

// Handle identifies a resolved namespace.
type Handle struct {
	Name string

	// Object is the namespace to create. Nil when the namespace was supplied
	// pre-created and is only referenced.
	Object *graph.Object
}

// Key returns the object identity of the namespace.
func (h Handle) Key() graph.ObjectKey {
	return Key(h.Name)
}

// PreCreated reports whether the namespace is referenced rather than created.
func (h Handle) PreCreated() bool {
	return h.Object == nil
}

// Key returns the object identity of a namespace by name.
func Key(name string) graph.ObjectKey {
	return graph.ObjectKey{Kind: Kind, Name: name}
}

// Resolver hands out one namespace handle per workload name.
type Resolver struct {
	fleet string

	mu      sync.Mutex
	handles map[string]Handle
}

// NewResolver creates a resolver. The fleet name is recorded on created namespaces.
func NewResolver(fleet string) *Resolver {
	return &Resolver{
		fleet:   fleet,
		handles: make(map[string]Handle),
	}
}

// Resolve returns the namespace for a workload. A non-empty preCreated name is
// returned unchanged as a reference. Resolving the same workload again returns
// the first handle.
func (r *Resolver) Resolve(workload, preCreated string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[workload]; ok {
		return h, nil
	}

	if preCreated != "" {
		h := Handle{Name: preCreated}
		r.handles[workload] = h
		return h, nil
	}

	obj, err := r.build(naming.Namespace(workload), workload)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to build namespace for %s: %w", workload, err)
	}
	h := Handle{Name: obj.Key.Name, Object: obj}
	r.handles[workload] = h
	return h, nil
}

// Lookup returns the handle resolved for a workload, if any.
func (r *Resolver) Lookup(workload string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[workload]
	return h, ok
}

// Names returns the distinct namespace names resolved so far, sorted.
func (r *Resolver) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.handles))
	for _, h := range r.handles {
		seen[h.Name] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Objects returns the namespaces to create, sorted by name.
func (r *Resolver) Objects() []*graph.Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string]*graph.Object)
	for _, h := range r.handles {
		if h.Object != nil {
			byName[h.Name] = h.Object
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]*graph.Object, 0, len(names))
	for _, n := range names {
		out = append(out, byName[n])
	}
	return out
}

func (r *Resolver) build(name, workload string) (*graph.Object, error) {
	ns := &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: Kind},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: labels.NewLabelBuilder(workload).
				WithFleet(r.fleet).
				WithIsolation().
				Build(),
		},
	}
	return graph.NewObject(ns)
}
