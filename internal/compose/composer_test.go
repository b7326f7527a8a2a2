package compose

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/utils/ptr"

	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/workload"
)

func baseInfra() Infrastructure {
	return Infrastructure{
		Issuer:  &Issuer{Name: "letsencrypt-production", Subsystem: readiness.CertManager},
		Gateway: &Gateway{Name: "traefik", Namespace: "traefik", SectionName: "websecure", Hostname: "tunnel-abc.example.net", Subsystem: readiness.Gateway},
	}
}

func withZone(i Infrastructure) Infrastructure {
	i.Zone = &Zone{Domain: "example.com", TTL: 300, Subsystem: readiness.ExternalDNS}
	return i
}

func withAuth(i Infrastructure) Infrastructure {
	i.AuthBackend = &AuthBackend{Address: "https://auth.example.com/verify"}
	return i
}

func demo() workload.Descriptor {
	return workload.Descriptor{
		Name:     "demo",
		Image:    "nginx:1.25",
		Domain:   "demo.example.com",
		Port:     8080,
		AuthMode: workload.AuthNone,
	}
}

func gate() *readiness.Gate {
	return readiness.NewGate(readiness.AllReady(), readiness.DefaultSubsystems())
}

func resolve(t *testing.T, name string) namespace.Handle {
	t.Helper()
	h, err := namespace.NewResolver("").Resolve(name, "")
	require.NoError(t, err)
	return h
}

func compose(t *testing.T, infra Infrastructure, d workload.Descriptor) (*graph.Graph, error) {
	t.Helper()
	return New(infra, gate()).Compose(context.Background(), d, resolve(t, d.Name), nil)
}

func mustCompose(t *testing.T, infra Infrastructure, d workload.Descriptor) *graph.Graph {
	t.Helper()
	g, err := compose(t, infra, d)
	require.NoError(t, err)
	require.NotNil(t, g)
	return g
}

func one(t *testing.T, g *graph.Graph, kind string) *unstructured.Unstructured {
	t.Helper()
	objs := g.ByKind(kind)
	require.Len(t, objs, 1, kind)
	return objs[0].Desired
}

func routeFilters(t *testing.T, g *graph.Graph) []any {
	t.Helper()
	rules, _, err := unstructured.NestedSlice(one(t, g, RouteKind).Object, "spec", "rules")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	filters, _, _ := unstructured.NestedSlice(rules[0].(map[string]any), "filters")
	return filters
}

func assertKind(t *testing.T, err error, want graph.FailureKind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := graph.KindOf(err)
	require.True(t, ok, "unclassified error: %v", err)
	assert.Equal(t, want, kind, err.Error())
}

func TestCompose_DemoScenario(t *testing.T) {
	t.Parallel()

	g := mustCompose(t, baseInfra(), demo())

	assert.Equal(t, []graph.ObjectKey{
		{Kind: "Namespace", Name: "demo"},
		{Kind: "Deployment", Namespace: "demo", Name: "demo"},
		{Kind: "Service", Namespace: "demo", Name: "demo"},
		{Kind: RouteKind, Namespace: "demo", Name: "demo"},
	}, g.Keys())

	dep := one(t, g, "Deployment")
	containers, _, _ := unstructured.NestedSlice(dep.Object, "spec", "template", "spec", "containers")
	require.Len(t, containers, 1)
	ports, _, _ := unstructured.NestedSlice(containers[0].(map[string]any), "ports")
	assert.EqualValues(t, 8080, ports[0].(map[string]any)["containerPort"])
	replicas, _, _ := unstructured.NestedInt64(dep.Object, "spec", "replicas")
	assert.EqualValues(t, 1, replicas)

	svc := one(t, g, "Service")
	svcPorts, _, _ := unstructured.NestedSlice(svc.Object, "spec", "ports")
	require.Len(t, svcPorts, 1)
	assert.EqualValues(t, 80, svcPorts[0].(map[string]any)["port"])
	assert.EqualValues(t, 8080, svcPorts[0].(map[string]any)["targetPort"])

	route := one(t, g, RouteKind)
	hosts, _, _ := unstructured.NestedStringSlice(route.Object, "spec", "hostnames")
	assert.Equal(t, []string{"demo.example.com"}, hosts)
	assert.Equal(t, "letsencrypt-production", route.GetAnnotations()["cert-manager.io/cluster-issuer"])

	assert.Empty(t, g.ByKind(FilterKind))
	assert.Empty(t, routeFilters(t, g))
}

func TestCompose_ScaledToZero(t *testing.T) {
	t.Parallel()

	d := demo()
	d.Replicas = ptr.To(0)
	g := mustCompose(t, baseInfra(), d)

	replicas, found, _ := unstructured.NestedInt64(one(t, g, "Deployment").Object, "spec", "replicas")
	assert.True(t, found)
	assert.EqualValues(t, 0, replicas)
	// still routed, so traffic resumes once scaled back up
	assert.Len(t, g.ByKind(RouteKind), 1)
}

func TestCompose_NoneAuthHasNoFilter(t *testing.T) {
	t.Parallel()

	variants := map[string]func(d *workload.Descriptor){
		"plain":        func(*workload.Descriptor) {},
		"with storage": func(d *workload.Descriptor) { d.Storage = &workload.Storage{Size: "1Gi", MountPath: "/data"} },
		"with sidecar": func(d *workload.Descriptor) { d.Sidecar = &workload.AuthSidecar{Image: "proxy:7", Port: 4180} },
		"replicated":   func(d *workload.Descriptor) { d.Replicas = ptr.To(3) },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := demo()
			mutate(&d)

			// An auth backend in context must not matter for NONE.
			g := mustCompose(t, withZone(withAuth(baseInfra())), d)
			assert.Empty(t, g.ByKind(FilterKind))
			assert.Empty(t, routeFilters(t, g))
		})
	}
}

func TestCompose_ForwardAuth(t *testing.T) {
	t.Parallel()

	d := demo()
	d.AuthMode = workload.AuthForward
	d.AllowedEmails = []string{"alice@example.com", "bob@example.org"}

	g := mustCompose(t, withAuth(baseInfra()), d)

	filters := g.ByKind(FilterKind)
	require.Len(t, filters, 1)
	mw := filters[0]
	assert.Equal(t, "demo-forward-auth", mw.Key.Name)
	assert.Equal(t, "demo", mw.Key.Namespace)
	assert.True(t, mw.DependsOnSubsystem(readiness.Gateway))
	assert.True(t, mw.DependsOnSubsystem(readiness.CertManager))

	address, _, _ := unstructured.NestedString(mw.Desired.Object, "spec", "forwardAuth", "address")
	assert.Equal(t, "https://auth.example.com/verify?allowed_emails=alice%40example.com%2Cbob%40example.org", address)
	headers, _, _ := unstructured.NestedStringSlice(mw.Desired.Object, "spec", "forwardAuth", "authResponseHeaders")
	assert.Equal(t, []string{"X-Auth-Request-User", "X-Auth-Request-Email"}, headers)

	refs := routeFilters(t, g)
	require.Len(t, refs, 1)
	ext := refs[0].(map[string]any)["extensionRef"].(map[string]any)
	assert.Equal(t, "demo-forward-auth", ext["name"])
	assert.Equal(t, FilterKind, ext["kind"])
	assert.Equal(t, FilterGroup, ext["group"])

	route, _ := g.Get(graph.ObjectKey{Kind: RouteKind, Namespace: "demo", Name: "demo"})
	assert.True(t, route.DependsOnKey(mw.Key))

	// the filter precedes the route
	keys := g.Keys()
	assert.Equal(t, FilterKind, keys[3].Kind)
	assert.Equal(t, RouteKind, keys[4].Kind)
}

func TestCompose_ForwardAuthWithoutBackend(t *testing.T) {
	t.Parallel()

	rec := metrics.NewRecorder()
	d := demo()
	d.AuthMode = workload.AuthForward

	g, err := New(baseInfra(), gate(), WithMetrics(rec)).Compose(context.Background(), d, resolve(t, "demo"), nil)
	assert.Nil(t, g)
	assertKind(t, err, graph.ConflictingTopology)
	assert.Contains(t, err.Error(), "authentication backend")
}

func TestCompose_ForwardAuthWithSidecar(t *testing.T) {
	t.Parallel()

	d := demo()
	d.AuthMode = workload.AuthForward
	d.Sidecar = &workload.AuthSidecar{Image: "proxy:7", Port: 4180}

	g, err := compose(t, withAuth(baseInfra()), d)
	assert.Nil(t, g)
	assertKind(t, err, graph.ConflictingTopology)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestCompose_DNSTargetIsGatewayHostname(t *testing.T) {
	t.Parallel()

	d := demo()
	d.Name = "blog"
	d.Domain = "blog.example.com"

	g := mustCompose(t, withZone(baseInfra()), d)

	rec := g.ByKind(DNSKind)
	require.Len(t, rec, 1)
	assert.Equal(t, "blog-dns", rec[0].Key.Name)

	endpoints, _, _ := unstructured.NestedSlice(rec[0].Desired.Object, "spec", "endpoints")
	require.Len(t, endpoints, 1)
	ep := endpoints[0].(map[string]any)
	assert.Equal(t, "blog.example.com", ep["dnsName"])
	assert.Equal(t, "CNAME", ep["recordType"])
	assert.Equal(t, []any{"tunnel-abc.example.net"}, ep["targets"])
	assert.EqualValues(t, 300, ep["recordTTL"])

	route := g.ByKind(RouteKind)[0]
	assert.True(t, rec[0].DependsOnKey(route.Key))
	assert.True(t, rec[0].DependsOnSubsystem(readiness.ExternalDNS))
}

func TestCompose_DNSProxiedFlag(t *testing.T) {
	t.Parallel()

	infra := withZone(baseInfra())
	proxied := false
	infra.Zone.Proxied = &proxied

	g := mustCompose(t, infra, demo())
	endpoints, _, _ := unstructured.NestedSlice(one(t, g, DNSKind).Object, "spec", "endpoints")
	specific := endpoints[0].(map[string]any)["providerSpecific"].([]any)
	require.Len(t, specific, 1)
	assert.Equal(t, "false", specific[0].(map[string]any)["value"])
}

func TestCompose_DNSTopologyConflicts(t *testing.T) {
	t.Parallel()

	t.Run("domain outside zone", func(t *testing.T) {
		t.Parallel()
		d := demo()
		d.Domain = "demo.other.org"
		_, err := compose(t, withZone(baseInfra()), d)
		assertKind(t, err, graph.ConflictingTopology)
		assert.Contains(t, err.Error(), "outside DNS zone")
	})

	t.Run("zone without gateway hostname", func(t *testing.T) {
		t.Parallel()
		infra := withZone(baseInfra())
		gw := *infra.Gateway
		gw.Hostname = ""
		infra.Gateway = &gw
		_, err := compose(t, infra, demo())
		assertKind(t, err, graph.ConflictingTopology)
		assert.Contains(t, err.Error(), "gateway hostname")
	})

	t.Run("no gateway", func(t *testing.T) {
		t.Parallel()
		infra := baseInfra()
		infra.Gateway = nil
		_, err := compose(t, infra, demo())
		assertKind(t, err, graph.ConflictingTopology)
	})
}

func TestCompose_StorageOnlyTouchesClaimAndRunner(t *testing.T) {
	t.Parallel()

	infra := withZone(withAuth(baseInfra()))
	with := demo()
	with.AuthMode = workload.AuthForward
	with.Storage = &workload.Storage{Size: "10Gi", MountPath: "/var/lib/app", StorageClass: "hcloud-volumes"}
	without := with
	without.Storage = nil

	gWith := mustCompose(t, infra, with)
	gWithout := mustCompose(t, infra, without)

	claims := gWith.ByKind("PersistentVolumeClaim")
	require.Len(t, claims, 1)
	assert.Equal(t, "demo-data", claims[0].Key.Name)
	assert.Empty(t, gWithout.ByKind("PersistentVolumeClaim"))
	assert.Equal(t, gWith.Len()-1, gWithout.Len())

	for _, kind := range []string{"Namespace", "Service", FilterKind, RouteKind, DNSKind} {
		a, err := json.Marshal(one(t, gWith, kind).Object)
		require.NoError(t, err)
		b, err := json.Marshal(one(t, gWithout, kind).Object)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), kind)
	}

	mounts := func(g *graph.Graph) []any {
		containers, _, _ := unstructured.NestedSlice(one(t, g, "Deployment").Object, "spec", "template", "spec", "containers")
		m, _, _ := unstructured.NestedSlice(containers[0].(map[string]any), "volumeMounts")
		return m
	}
	require.Len(t, mounts(gWith), 1)
	assert.Empty(t, mounts(gWithout))

	runner := gWith.ByKind("Deployment")[0]
	assert.True(t, runner.DependsOnKey(claims[0].Key))
	strategy, _, _ := unstructured.NestedString(runner.Desired.Object, "spec", "strategy", "type")
	assert.Equal(t, "Recreate", strategy)
	class, _, _ := unstructured.NestedString(claims[0].Desired.Object, "spec", "storageClassName")
	assert.Equal(t, "hcloud-volumes", class)
}

func TestCompose_SidecarTakesServicePort(t *testing.T) {
	t.Parallel()

	d := demo()
	d.Sidecar = &workload.AuthSidecar{Image: "quay.io/oauth2-proxy/oauth2-proxy:v7.6.0", Port: 4180}

	g := mustCompose(t, baseInfra(), d)

	containers, _, _ := unstructured.NestedSlice(one(t, g, "Deployment").Object, "spec", "template", "spec", "containers")
	require.Len(t, containers, 2)
	sidecar := containers[1].(map[string]any)
	assert.Equal(t, "demo-auth-proxy", sidecar["name"])
	assert.Contains(t, sidecar["args"], "--upstream=http://127.0.0.1:8080")

	ports, _, _ := unstructured.NestedSlice(one(t, g, "Service").Object, "spec", "ports")
	assert.EqualValues(t, 4180, ports[0].(map[string]any)["targetPort"])
}

func TestCompose_SelectorsMatch(t *testing.T) {
	t.Parallel()

	g := mustCompose(t, baseInfra(), demo())

	dep := one(t, g, "Deployment")
	selector, _, _ := unstructured.NestedStringMap(dep.Object, "spec", "selector", "matchLabels")
	template, _, _ := unstructured.NestedStringMap(dep.Object, "spec", "template", "metadata", "labels")
	svcSelector, _, _ := unstructured.NestedStringMap(one(t, g, "Service").Object, "spec", "selector")

	assert.Equal(t, selector, svcSelector)
	for k, v := range selector {
		assert.Equal(t, v, template[k])
	}
	_, found, _ := unstructured.NestedFieldNoCopy(dep.Object, "spec", "template", "metadata", "creationTimestamp")
	assert.False(t, found)
}

func TestCompose_PullSecrets(t *testing.T) {
	t.Parallel()

	infra := baseInfra()
	infra.SecretStore = &SecretStore{Name: "vault", Kind: "ClusterSecretStore", Subsystem: readiness.SecretStore}

	dist, err := credentials.NewDistributor(credentials.Store{Name: "vault"}, "", []credentials.Provider{
		{ID: "ghcr", Type: credentials.TypeRegistry, SecretName: "ghcr-pull"},
	})
	require.NoError(t, err)
	token := graph.Token{Subsystem: readiness.SecretStore, Ready: true}

	d := demo()
	d.PullSecrets = []string{"ghcr"}
	ns := resolve(t, "demo")
	creds, err := dist.ForWorkload(ns.Name, d.PullSecrets, token)
	require.NoError(t, err)

	g, err := New(infra, gate()).Compose(context.Background(), d, ns, creds)
	require.NoError(t, err)

	runner := g.ByKind("Deployment")[0]
	assert.True(t, runner.DependsOnKey(creds[0].Key()))
	pullSecrets, _, _ := unstructured.NestedSlice(runner.Desired.Object, "spec", "template", "spec", "imagePullSecrets")
	assert.Equal(t, []any{map[string]any{"name": "ghcr-pull"}}, pullSecrets)
	// the credential itself is a shared object, not part of the workload graph
	assert.Empty(t, g.ByKind(credentials.Kind))

	t.Run("not distributed", func(t *testing.T) {
		t.Parallel()
		_, err := New(infra, gate()).Compose(context.Background(), d, ns, nil)
		assertKind(t, err, graph.ConflictingTopology)
	})

	t.Run("no secret store", func(t *testing.T) {
		t.Parallel()
		_, err := New(baseInfra(), gate()).Compose(context.Background(), d, ns, creds)
		assertKind(t, err, graph.ConflictingTopology)
		assert.Contains(t, err.Error(), "secret store")
	})
}

func TestCompose_PreCreatedNamespace(t *testing.T) {
	t.Parallel()

	ns, err := namespace.NewResolver("").Resolve("demo", "apps")
	require.NoError(t, err)

	g, err := New(baseInfra(), gate()).Compose(context.Background(), demo(), ns, nil)
	require.NoError(t, err)

	assert.Empty(t, g.ByKind("Namespace"))
	runner := g.ByKind("Deployment")[0]
	assert.Equal(t, "apps", runner.Key.Namespace)
	assert.True(t, runner.DependsOnKey(namespace.Key("apps")))
}

func TestCompose_GateNotReady(t *testing.T) {
	t.Parallel()

	probe := &readiness.StaticProbe{Ready: map[string]bool{readiness.Gateway: false}, Default: true}
	g := readiness.NewGate(probe, readiness.DefaultSubsystems(), readiness.WithBudget(readiness.Budget{
		MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond,
	}))

	out, err := New(baseInfra(), g).Compose(context.Background(), demo(), resolve(t, "demo"), nil)
	assert.Nil(t, out)
	assertKind(t, err, graph.DependencyUnresolved)
	assert.Contains(t, err.Error(), "demo")
	assert.Contains(t, err.Error(), readiness.Gateway)
}

func TestCompose_Malformed(t *testing.T) {
	t.Parallel()

	d := demo()
	d.Port = 0
	_, err := compose(t, baseInfra(), d)
	assertKind(t, err, graph.MalformedDescriptor)
}

func TestCompose_DependencyOrder(t *testing.T) {
	t.Parallel()

	d := demo()
	d.AuthMode = workload.AuthForward
	d.Storage = &workload.Storage{Size: "1Gi", MountPath: "/data"}
	g := mustCompose(t, withZone(withAuth(baseInfra())), d)

	// every object dependency points backwards
	seen := map[graph.ObjectKey]bool{}
	for _, o := range g.Objects() {
		for _, dep := range o.DependsOn {
			if !dep.IsReadiness() {
				assert.True(t, seen[dep.Object], "%s depends on later %s", o.Key, dep.Object)
			}
		}
		seen[o.Key] = true
	}

	kinds := make([]string, 0, g.Len())
	for _, k := range g.Keys() {
		kinds = append(kinds, k.Kind)
	}
	assert.Equal(t, []string{"Namespace", "PersistentVolumeClaim", "Deployment", "Service", FilterKind, RouteKind, DNSKind}, kinds)
	assert.Equal(t, []string{readiness.CertManager, readiness.ExternalDNS, readiness.Gateway}, g.Subsystems())
}

func TestCompose_DescriptorNotMutated(t *testing.T) {
	t.Parallel()

	d := demo()
	d.AuthMode = "none"
	before := d.Clone()

	mustCompose(t, baseInfra(), d)
	assert.Equal(t, before, d)
}
