package orchestration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/exposer/internal/compose"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/exposure"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/workload"
)

const fleetName = "lab"

type fixture struct {
	probe     readiness.Probe
	withStore bool
	providers []credentials.Provider
}

func (f fixture) root() *Root {
	gate := readiness.NewGate(f.probe, readiness.DefaultSubsystems(),
		readiness.WithBudget(readiness.Budget{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))

	refs := exposure.Refs{
		Infrastructure: compose.Infrastructure{
			Fleet:   fleetName,
			Issuer:  &compose.Issuer{Name: "letsencrypt-production", Subsystem: readiness.CertManager},
			Zone:    &compose.Zone{Domain: "example.com", ID: "zone-1", TTL: 300, Subsystem: readiness.ExternalDNS},
			Gateway: &compose.Gateway{Name: "traefik", Namespace: "traefik", SectionName: "websecure", Hostname: "lb.example.net", Subsystem: readiness.Gateway},
		},
		BaseDomain: "example.com",
	}
	deps := exposure.Deps{
		Gate:     gate,
		Resolver: namespace.NewResolver(fleetName),
	}
	if f.withStore {
		refs.SecretStore = &compose.SecretStore{Name: "vault", Kind: "ClusterSecretStore", Subsystem: readiness.SecretStore}
		d, err := credentials.NewDistributor(credentials.Store{Name: "vault", Kind: "ClusterSecretStore"}, fleetName, f.providers)
		Expect(err).NotTo(HaveOccurred())
		deps.Distributor = d
	}

	ec, err := exposure.BuildContext(context.Background(), refs, deps)
	Expect(err).NotTo(HaveOccurred())
	return NewRoot(ec, deps, WithRunID("run-1"))
}

func app(name string) workload.Descriptor {
	return workload.Descriptor{Name: name, Image: "nginx:1.25", Port: 8080}
}

func kinds(objs []*graph.Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key.Kind)
	}
	return out
}

var _ = Describe("Root", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with every subsystem ready", func() {
		It("composes a single workload and exports its identifiers", func() {
			root := fixture{probe: readiness.AllReady()}.root()

			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{app("demo")}})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.RunID).To(Equal("run-1"))
			Expect(res.Failures).To(BeEmpty())
			Expect(res.Succeeded()).To(ConsistOf("demo"))

			ordered := res.Ordered()
			Expect(ordered).NotTo(BeEmpty())
			Expect(ordered[0].Key).To(Equal(namespace.Key("demo")))
			Expect(kinds(ordered)).To(ContainElements("Deployment", "Service", compose.RouteKind, compose.DNSKind))

			exp := res.Exports["demo"]
			Expect(exp.Namespace).To(Equal("demo"))
			Expect(exp.Hostname).To(Equal("demo.example.com"))
			Expect(exp.DNSRecord).NotTo(BeEmpty())
			Expect(exp.Filter).To(BeEmpty())
		})

		It("emits each namespace once, ahead of all graphs", func() {
			root := fixture{probe: readiness.AllReady()}.root()

			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{app("a"), app("b")}})
			Expect(err).NotTo(HaveOccurred())

			ordered := res.Ordered()
			Expect(kinds(ordered[:2])).To(Equal([]string{namespace.Kind, namespace.Kind}))
			count := 0
			for _, o := range ordered {
				if o.Key.Kind == namespace.Kind {
					count++
				}
			}
			Expect(count).To(Equal(2))
		})

		It("isolates malformed and duplicate descriptors", func() {
			root := fixture{probe: readiness.AllReady()}.root()

			broken := app("broken")
			broken.Image = ""
			res, err := root.Run(ctx, Fleet{
				Name:      fleetName,
				Workloads: []workload.Descriptor{app("good"), broken, app("good")},
				Rejected:  []Failure{{Workload: "unreadable", Kind: graph.MalformedDescriptor, Message: "parse error"}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Succeeded()).To(ConsistOf("good"))
			Expect(res.Failures).To(HaveLen(3))

			f, ok := res.Failure("broken")
			Expect(ok).To(BeTrue())
			Expect(f.Kind).To(Equal(graph.MalformedDescriptor))

			_, ok = res.Failure("unreadable")
			Expect(ok).To(BeTrue())

			for _, o := range res.Shared {
				Expect(o.Key.Name).NotTo(Equal("broken"))
			}
		})

		It("rejects forward auth without an auth backend but keeps the fleet going", func() {
			root := fixture{probe: readiness.AllReady()}.root()

			guarded := app("guarded")
			guarded.AuthMode = workload.AuthForward
			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{guarded, app("open")}})
			Expect(err).NotTo(HaveOccurred())

			f, ok := res.Failure("guarded")
			Expect(ok).To(BeTrue())
			Expect(f.Kind).To(Equal(graph.ConflictingTopology))
			Expect(res.Succeeded()).To(ConsistOf("open"))
		})
	})

	Context("with a secret store", func() {
		providers := []credentials.Provider{
			{ID: "ghcr", Type: credentials.TypeRegistry, FleetWide: true},
			{ID: "api-token", Type: credentials.TypeOpaque},
			{ID: "private-reg", Type: credentials.TypeRegistry},
		}

		secretsIn := func(res *Result, ns string) []string {
			var out []string
			for _, o := range res.Ordered() {
				if o.Key.Kind == credentials.Kind && o.Key.Namespace == ns {
					out = append(out, o.Key.Name)
				}
			}
			return out
		}

		It("distributes fleet-wide credentials once per namespace", func() {
			root := fixture{probe: readiness.AllReady(), withStore: true, providers: providers}.root()

			a, b := app("a"), app("b")
			a.PullSecrets = []string{"ghcr"}
			b.PullSecrets = []string{"ghcr"}
			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{a, b}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failures).To(BeEmpty())

			var secrets []string
			for _, o := range res.Ordered() {
				if o.Key.Kind == credentials.Kind {
					secrets = append(secrets, o.Key.Namespace)
				}
			}
			Expect(secrets).To(ConsistOf("a", "b", "default"))
		})

		It("fails only the workload asking for an opaque credential as a pull secret", func() {
			root := fixture{probe: readiness.AllReady(), withStore: true, providers: providers}.root()

			bad := app("bad")
			bad.PullSecrets = []string{"api-token"}
			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{bad, app("fine")}})
			Expect(err).NotTo(HaveOccurred())

			f, ok := res.Failure("bad")
			Expect(ok).To(BeTrue())
			Expect(f.Kind).To(Equal(graph.MalformedDescriptor))
			Expect(res.Succeeded()).To(ConsistOf("fine"))
		})

		It("emits no pull secret for a workload that fails its topology check", func() {
			root := fixture{probe: readiness.AllReady(), withStore: true, providers: providers}.root()

			guarded := app("guarded")
			guarded.AuthMode = workload.AuthForward
			guarded.PullSecrets = []string{"private-reg"}
			open := app("open")
			open.PullSecrets = []string{"private-reg"}
			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{guarded, open}})
			Expect(err).NotTo(HaveOccurred())

			f, ok := res.Failure("guarded")
			Expect(ok).To(BeTrue())
			Expect(f.Kind).To(Equal(graph.ConflictingTopology))
			Expect(res.Succeeded()).To(ConsistOf("open"))

			// only the fleet-wide credential reaches the failed workload's namespace
			Expect(secretsIn(res, "guarded")).To(ConsistOf("ghcr"))
			Expect(secretsIn(res, "open")).To(ConsistOf("ghcr", "private-reg"))
			for _, a := range res.Advisories {
				Expect(a.ProviderID == "private-reg" && a.Namespace == "guarded").To(BeFalse())
			}
		})

		It("emits no pull secret for a workload blocked on the gateway", func() {
			probe := &readiness.StaticProbe{Default: true, Ready: map[string]bool{readiness.Gateway: false}}
			root := fixture{probe: probe, withStore: true, providers: providers}.root()

			blocked := app("blocked")
			blocked.PullSecrets = []string{"private-reg"}
			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{blocked}})
			Expect(err).NotTo(HaveOccurred())

			f, ok := res.Failure("blocked")
			Expect(ok).To(BeTrue())
			Expect(f.Kind).To(Equal(graph.DependencyUnresolved))
			Expect(secretsIn(res, "blocked")).To(ConsistOf("ghcr"))
		})
	})

	Context("when the gateway never becomes ready", func() {
		It("fails gated workloads and reports the subsystem once", func() {
			probe := &readiness.StaticProbe{Default: true, Ready: map[string]bool{readiness.Gateway: false}}
			root := fixture{probe: probe}.root()

			res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{app("a"), app("b")}})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Graphs).To(BeEmpty())
			for _, name := range []string{"a", "b"} {
				f, ok := res.Failure(name)
				Expect(ok).To(BeTrue())
				Expect(f.Kind).To(Equal(graph.DependencyUnresolved))
			}

			Expect(res.Warnings).To(HaveLen(1))
			Expect(res.Warnings[0].Subsystem).To(Equal(readiness.Gateway))
			Expect(res.Warnings[0].Workloads).To(ConsistOf("a", "b"))

			// Namespaces were resolved before composition and are still emitted.
			Expect(kinds(res.Shared)).To(Equal([]string{namespace.Kind, namespace.Kind}))
		})
	})

	It("renders exports as JSON", func() {
		root := fixture{probe: readiness.AllReady()}.root()

		res, err := root.Run(ctx, Fleet{Name: fleetName, Workloads: []workload.Descriptor{app("demo")}})
		Expect(err).NotTo(HaveOccurred())

		data, err := res.ExportsJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"hostname": "demo.example.com"`))
		Expect(string(data)).To(ContainSubstring(`"runID": "run-1"`))
	})
})
