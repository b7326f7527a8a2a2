// Package credentials distributes named credentials from the secret store into
// namespaces by emitting one synchronization request per (id, namespace) pair.
package credentials

import (
	"fmt"
	"sort"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/util/labels"
	"github.com/imamik/exposer/internal/util/naming"
)

// Store identifies the secret store synchronization requests read from.
type Store struct {
	Name string
	Kind string // SecretStore or ClusterSecretStore
}

// Request asks for a credential in a namespace.
type Request struct {
	ProviderID string
	Namespace  string

	// RefreshInterval overrides the provider's cadence when non-zero.
	RefreshInterval time.Duration
}

// Credential is a distributed credential as seen by a workload.
type Credential struct {
	ProviderID string
	Type       ProviderType
	SecretName string
	Object     *graph.Object
}

// Key returns the identity of the synchronization request.
func (c Credential) Key() graph.ObjectKey {
	return c.Object.Key
}

// Advisory records that a requested secret materializes asynchronously.
// Consumers of the secret stay pending until it exists; this is expected
// transient state, not a failure.
type Advisory struct {
	ProviderID string
	Namespace  string
	SecretName string
}

func (a Advisory) String() string {
	return fmt.Sprintf("CredentialMissing: secret %s/%s (%s) is synchronized asynchronously; consumers stay pending until it exists",
		a.Namespace, a.SecretName, a.ProviderID)
}

type requestKey struct {
	id        string
	namespace string
}

// Distributor emits credential synchronization requests, at most one per
// (id, namespace) pair. Safe for concurrent use.
type Distributor struct {
	store     Store
	fleet     string
	providers map[string]Provider

	mu      sync.Mutex
	objects map[requestKey]Credential
	order   []requestKey
}

// NewDistributor creates a distributor. Providers are defaulted and validated.
func NewDistributor(store Store, fleet string, providers []Provider) (*Distributor, error) {
	d := &Distributor{
		store:     store,
		fleet:     fleet,
		providers: make(map[string]Provider, len(providers)),
		objects:   make(map[requestKey]Credential),
	}
	secretNames := make(map[string]string)
	for _, p := range providers {
		p = p.WithDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := d.providers[p.ID]; dup {
			return nil, fmt.Errorf("credential %q is declared twice", p.ID)
		}
		if other, dup := secretNames[p.SecretName]; dup {
			return nil, fmt.Errorf("credentials %q and %q both materialize secret %q", other, p.ID, p.SecretName)
		}
		secretNames[p.SecretName] = p.ID
		d.providers[p.ID] = p
	}
	return d, nil
}

// Provider returns a declared provider.
func (d *Distributor) Provider(id string) (Provider, bool) {
	p, ok := d.providers[id]
	return p, ok
}

// Distribute returns the synchronization request for (id, namespace),
// creating it on first use. The request depends on the secret-store token,
// which must be ready.
func (d *Distributor) Distribute(req Request, token graph.Token) (*graph.Object, error) {
	c, err := d.distribute(req, token)
	if err != nil {
		return nil, err
	}
	return c.Object, nil
}

func (d *Distributor) distribute(req Request, token graph.Token) (Credential, error) {
	c, err := d.stage(req, token)
	if err != nil {
		return Credential{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(c), nil
}

// stage returns the recorded request for (id, namespace), or builds one
// without recording it.
func (d *Distributor) stage(req Request, token graph.Token) (Credential, error) {
	if !token.Ready {
		return Credential{}, graph.Unresolved(token.Subsystem,
			fmt.Errorf("cannot distribute credential %q to %s: secret store is not ready", req.ProviderID, req.Namespace))
	}
	p, ok := d.providers[req.ProviderID]
	if !ok {
		return Credential{}, fmt.Errorf("credential %q is not declared", req.ProviderID)
	}
	if req.Namespace == "" {
		return Credential{}, fmt.Errorf("credential %q: target namespace is required", req.ProviderID)
	}

	d.mu.Lock()
	c, ok := d.objects[requestKey{id: req.ProviderID, namespace: req.Namespace}]
	d.mu.Unlock()
	if ok {
		return c, nil
	}

	interval := p.RefreshInterval
	if req.RefreshInterval > 0 {
		interval = req.RefreshInterval
	}

	obj, err := graph.NewObject(d.build(p, req.Namespace, interval), graph.OnReadiness(token.Subsystem))
	if err != nil {
		return Credential{}, fmt.Errorf("failed to build credential %q for %s: %w", p.ID, req.Namespace, err)
	}
	return Credential{ProviderID: p.ID, Type: p.Type, SecretName: p.SecretName, Object: obj}, nil
}

// record keeps the first request per pair. Callers hold mu.
func (d *Distributor) record(c Credential) Credential {
	key := requestKey{id: c.ProviderID, namespace: c.Object.Key.Namespace}
	if existing, ok := d.objects[key]; ok {
		return existing
	}
	d.objects[key] = c
	d.order = append(d.order, key)
	return c
}

// DistributeFleet emits every fleet-wide credential into each namespace and
// the default namespace.
func (d *Distributor) DistributeFleet(namespaces []string, token graph.Token) ([]*graph.Object, error) {
	targets := withDefaultNamespace(namespaces)

	ids := make([]string, 0, len(d.providers))
	for id, p := range d.providers {
		if p.FleetWide {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []*graph.Object
	for _, ns := range targets {
		for _, id := range ids {
			obj, err := d.Distribute(Request{ProviderID: id, Namespace: ns}, token)
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// ForWorkload resolves a workload's pull-secret credentials in its namespace.
// Pairs already distributed are returned as recorded; new ones are staged and
// only emitted once passed to Commit. Only registry credentials can be pulled
// with.
func (d *Distributor) ForWorkload(namespace string, ids []string, token graph.Token) ([]Credential, error) {
	out := make([]Credential, 0, len(ids))
	for _, id := range ids {
		if p, ok := d.providers[id]; ok && p.Type != TypeRegistry {
			return nil, fmt.Errorf("credential %q is %s, not a registry credential", id, p.Type)
		}
		c, err := d.stage(Request{ProviderID: id, Namespace: namespace}, token)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Commit records staged credentials. A pair recorded in the meantime keeps
// its first request.
func (d *Distributor) Commit(creds []Credential) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range creds {
		d.record(c)
	}
}

// Objects returns all emitted requests in first-request order.
func (d *Distributor) Objects() []*graph.Object {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*graph.Object, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.objects[k].Object)
	}
	return out
}

// Advisories returns one CredentialMissing advisory per emitted request.
func (d *Distributor) Advisories() []Advisory {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Advisory, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, Advisory{
			ProviderID: k.id,
			Namespace:  k.namespace,
			SecretName: d.objects[k].SecretName,
		})
	}
	return out
}

func (d *Distributor) build(p Provider, namespace string, interval time.Duration) *ExternalSecret {
	es := &ExternalSecret{
		TypeMeta: metav1.TypeMeta{APIVersion: APIVersion, Kind: Kind},
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.SecretName,
			Namespace: namespace,
			Labels: labels.NewLabelBuilder(p.ID).
				WithFleet(d.fleet).
				WithComponent("credential").
				Build(),
		},
		Spec: ExternalSecretSpec{
			RefreshInterval: &metav1.Duration{Duration: interval},
			SecretStoreRef:  SecretStoreRef{Name: d.store.Name, Kind: d.store.Kind},
			Target: Target{
				Name:           p.SecretName,
				CreationPolicy: "Owner",
			},
		},
	}

	if p.Type == TypeRegistry {
		es.Spec.Target.Template = &Template{Type: string(corev1.SecretTypeDockerConfigJson)}
		es.Spec.Data = []Data{{
			SecretKey: corev1.DockerConfigJsonKey,
			RemoteRef: RemoteRef{Key: p.RemoteKey, Property: p.SourceKeys[0]},
		}}
		return es
	}

	for _, k := range p.SourceKeys {
		es.Spec.Data = append(es.Spec.Data, Data{
			SecretKey: k,
			RemoteRef: RemoteRef{Key: p.RemoteKey, Property: k},
		})
	}
	return es
}

func withDefaultNamespace(namespaces []string) []string {
	seen := map[string]bool{naming.DefaultNamespace: true}
	out := []string{naming.DefaultNamespace}
	for _, ns := range namespaces {
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
