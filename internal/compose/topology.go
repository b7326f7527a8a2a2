package compose

import (
	"strings"

	"github.com/imamik/exposer/internal/workload"
)

// Feature is one conditional aspect of a workload's topology.
type Feature uint8

const (
	FeatureStorage Feature = 1 << iota
	FeatureForwardAuth
	FeatureSidecar
	FeaturePullSecrets
	FeatureDNS
	FeatureTLS
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureStorage, "storage"},
	{FeatureForwardAuth, "forward-auth"},
	{FeatureSidecar, "auth-sidecar"},
	{FeaturePullSecrets, "pull-secrets"},
	{FeatureDNS, "dns"},
	{FeatureTLS, "tls"},
}

// Has reports whether all bits of other are set.
func (f Feature) Has(other Feature) bool {
	return f&other == other
}

func (f Feature) String() string {
	var parts []string
	for _, n := range featureNames {
		if f.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Features derives the feature set from a descriptor and the configured
// infrastructure. DNS and TLS follow the presence of a zone and an issuer.
func Features(d workload.Descriptor, infra Infrastructure) Feature {
	var f Feature
	if d.HasStorage() {
		f |= FeatureStorage
	}
	if d.UsesForwardAuth() {
		f |= FeatureForwardAuth
	}
	if d.UsesSidecar() {
		f |= FeatureSidecar
	}
	if d.HasPullSecrets() {
		f |= FeaturePullSecrets
	}
	if infra.Zone != nil {
		f |= FeatureDNS
	}
	if infra.Issuer != nil {
		f |= FeatureTLS
	}
	return f
}

// Slot names, in emission order.
const (
	SlotNamespace  = "namespace"
	SlotStorage    = "storage"
	SlotRunner     = "runner"
	SlotService    = "service"
	SlotAuthFilter = "auth-filter"
	SlotRoute      = "route"
	SlotDNSRecord  = "dns-record"
)

// slot is one row of the topology table: the object it produces exists iff
// the workload has every feature in when.
type slot struct {
	name  string
	when  Feature
	build builder
}

// topology lists every object a workload can have, in dependency order.
// The sub-graph for a feature set is the rows whose condition it satisfies.
var topology = []slot{
	{name: SlotNamespace, build: buildNamespace},
	{name: SlotStorage, when: FeatureStorage, build: buildStorageClaim},
	{name: SlotRunner, build: buildRunner},
	{name: SlotService, build: buildService},
	{name: SlotAuthFilter, when: FeatureForwardAuth, build: buildAuthFilter},
	{name: SlotRoute, build: buildRoute},
	{name: SlotDNSRecord, when: FeatureDNS, build: buildDNSRecord},
}

// Shape returns the slots present for a feature set, in emission order.
func Shape(f Feature) []string {
	var out []string
	for _, s := range topology {
		if f.Has(s.when) {
			out = append(out, s.name)
		}
	}
	return out
}

// requirement ties a feature to the shared reference it cannot work without.
type requirement struct {
	when    Feature
	ref     string
	present func(Infrastructure) bool
}

var requirements = []requirement{
	{when: 0, ref: "gateway", present: func(i Infrastructure) bool { return i.Gateway != nil }},
	{when: FeatureForwardAuth, ref: "authentication backend", present: func(i Infrastructure) bool { return i.AuthBackend != nil }},
	{when: FeaturePullSecrets, ref: "secret store", present: func(i Infrastructure) bool { return i.SecretStore != nil }},
	{when: FeatureDNS, ref: "gateway hostname", present: func(i Infrastructure) bool { return i.Gateway != nil && i.Gateway.Hostname != "" }},
}

// exclusive lists feature pairs that cannot be combined.
var exclusive = []struct {
	a, b Feature
	why  string
}{
	{FeatureForwardAuth, FeatureSidecar, "authMode FORWARD and an auth sidecar are mutually exclusive"},
}
