package compose

import (
	"context"
	"errors"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/workload"
)

// Composer expands descriptors against a fixed set of shared references.
type Composer struct {
	infra   Infrastructure
	tokens  TokenSource
	metrics *metrics.Recorder
}

// Option configures a Composer.
type Option func(*Composer)

// WithMetrics records composition results.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Composer) {
		c.metrics = m
	}
}

// New creates a composer.
func New(infra Infrastructure, tokens TokenSource, opts ...Option) *Composer {
	c := &Composer{infra: infra, tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns the object graph of one workload. Descriptor and topology
// errors are returned before any object is built; on any error no graph is
// returned.
func (c *Composer) Compose(ctx context.Context, d workload.Descriptor, ns namespace.Handle, creds []credentials.Credential) (*graph.Graph, error) {
	g, err := c.compose(ctx, d, ns, creds)
	if err != nil {
		c.metrics.RecordCompose(metrics.ResultFailure)
		return nil, err
	}

	c.metrics.RecordCompose(metrics.ResultSuccess)
	for _, o := range g.Objects() {
		c.metrics.RecordObject(o.Key.Kind)
	}
	return g, nil
}

func (c *Composer) compose(ctx context.Context, d workload.Descriptor, ns namespace.Handle, creds []credentials.Credential) (*graph.Graph, error) {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return nil, graph.Malformed(d.Name, err)
	}
	if ns.Name == "" {
		return nil, fmt.Errorf("workload %s has no resolved namespace", d.Name)
	}

	f := Features(d, c.infra)
	logger := log.FromContext(ctx).WithValues("workload", d.Name, "features", f.String())

	if err := c.checkTopology(d, f, creds); err != nil {
		return nil, err
	}

	tokens, err := c.awaitTokens(ctx, d.Name, f)
	if err != nil {
		return nil, err
	}

	p := &plan{
		d:        d,
		features: f,
		ns:       ns,
		creds:    creds,
		infra:    c.infra,
		keys:     make(map[string]graph.ObjectKey),
	}

	// Built into a scratch graph; callers only ever see a complete one.
	g := graph.New(d.Name)
	if ns.PreCreated() {
		g.Provide(ns.Key())
	}
	for _, cr := range creds {
		g.Provide(cr.Key())
	}
	for _, t := range tokens {
		g.MarkReady(t)
	}

	for _, s := range topology {
		if !f.Has(s.when) {
			continue
		}
		obj, err := s.build(p)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s for %s: %w", s.name, d.Name, err)
		}
		if obj == nil {
			continue
		}
		if err := g.Append(obj); err != nil {
			return nil, fmt.Errorf("failed to add %s for %s: %w", s.name, d.Name, err)
		}
		p.keys[s.name] = obj.Key
	}

	logger.V(1).Info("composed workload", "objects", g.Len())
	return g, nil
}

// checkTopology rejects feature combinations the shared references cannot serve.
func (c *Composer) checkTopology(d workload.Descriptor, f Feature, creds []credentials.Credential) error {
	for _, x := range exclusive {
		if f.Has(x.a) && f.Has(x.b) {
			return graph.Conflicting(d.Name, "%s", x.why)
		}
	}

	var missing []error
	for _, r := range requirements {
		if f.Has(r.when) && !r.present(c.infra) {
			missing = append(missing, fmt.Errorf("%s requires a configured %s", describe(r.when), r.ref))
		}
	}
	if len(missing) > 0 {
		return graph.Conflicting(d.Name, "%w", errors.Join(missing...))
	}

	if f.Has(FeatureDNS) && !c.infra.Zone.Contains(d.Domain) {
		return graph.Conflicting(d.Name, "domain %q is outside DNS zone %q", d.Domain, c.infra.Zone.Domain)
	}

	have := make(map[string]bool, len(creds))
	for _, cr := range creds {
		have[cr.ProviderID] = true
	}
	for _, id := range d.PullSecrets {
		if !have[id] {
			return graph.Conflicting(d.Name, "pull secret %q was not distributed to namespace", id)
		}
	}
	return nil
}

func describe(f Feature) string {
	if f == 0 {
		return "route"
	}
	return f.String()
}

// awaitTokens resolves every readiness token the workload's topology needs.
func (c *Composer) awaitTokens(ctx context.Context, workloadName string, f Feature) ([]graph.Token, error) {
	subsystems := []string{c.infra.Gateway.Subsystem}
	if f.Has(FeatureTLS) {
		subsystems = append(subsystems, c.infra.Issuer.Subsystem)
	}
	if f.Has(FeatureDNS) {
		subsystems = append(subsystems, c.infra.Zone.Subsystem)
	}

	seen := make(map[string]bool)
	var tokens []graph.Token
	for _, s := range subsystems {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		if c.tokens == nil {
			return nil, graph.ForWorkload(workloadName, graph.Unresolved(s, errors.New("no readiness gate configured")))
		}
		t, err := c.tokens.Await(ctx, s)
		if err != nil {
			return nil, graph.ForWorkload(workloadName, err)
		}
		if !t.Ready {
			return nil, graph.ForWorkload(workloadName, graph.Unresolved(s, errors.New("subsystem is not ready")))
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
