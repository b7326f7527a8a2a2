package compose

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// API identities of the custom kinds the composer emits.
const (
	RouteAPIVersion  = "gateway.networking.k8s.io/v1"
	RouteKind        = "HTTPRoute"
	FilterAPIVersion = "traefik.io/v1alpha1"
	FilterKind       = "Middleware"
	FilterGroup      = "traefik.io"
	DNSAPIVersion    = "externaldns.k8s.io/v1alpha1"
	DNSKind          = "DNSEndpoint"
	GatewayGroup     = "gateway.networking.k8s.io"
)

// HTTPRoute is the subset of the Gateway API route the composer sets.
type HTTPRoute struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec HTTPRouteSpec `json:"spec"`
}

type HTTPRouteSpec struct {
	ParentRefs []ParentReference `json:"parentRefs,omitempty"`
	Hostnames  []string          `json:"hostnames,omitempty"`
	Rules      []HTTPRouteRule   `json:"rules,omitempty"`
}

type ParentReference struct {
	Group       string `json:"group,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Name        string `json:"name"`
	SectionName string `json:"sectionName,omitempty"`
}

type HTTPRouteRule struct {
	Matches     []HTTPRouteMatch  `json:"matches,omitempty"`
	Filters     []HTTPRouteFilter `json:"filters,omitempty"`
	BackendRefs []BackendRef      `json:"backendRefs,omitempty"`
}

type HTTPRouteMatch struct {
	Path *HTTPPathMatch `json:"path,omitempty"`
}

type HTTPPathMatch struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type HTTPRouteFilter struct {
	Type         string                `json:"type"`
	ExtensionRef *LocalObjectReference `json:"extensionRef,omitempty"`
}

type LocalObjectReference struct {
	Group string `json:"group"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
}

type BackendRef struct {
	Name string `json:"name"`
	Port int32  `json:"port"`
}

// Middleware is a Traefik middleware carrying a forwardAuth filter.
type Middleware struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec MiddlewareSpec `json:"spec"`
}

type MiddlewareSpec struct {
	ForwardAuth *ForwardAuth `json:"forwardAuth,omitempty"`
}

type ForwardAuth struct {
	Address             string   `json:"address"`
	TrustForwardHeader  bool     `json:"trustForwardHeader,omitempty"`
	AuthResponseHeaders []string `json:"authResponseHeaders,omitempty"`
	AuthRequestHeaders  []string `json:"authRequestHeaders,omitempty"`
}

// DNSEndpoint is an external-dns record set.
type DNSEndpoint struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec DNSEndpointSpec `json:"spec"`
}

type DNSEndpointSpec struct {
	Endpoints []Endpoint `json:"endpoints"`
}

type Endpoint struct {
	DNSName          string             `json:"dnsName"`
	RecordType       string             `json:"recordType"`
	Targets          []string           `json:"targets"`
	RecordTTL        int64              `json:"recordTTL,omitempty"`
	ProviderSpecific []ProviderProperty `json:"providerSpecific,omitempty"`
}

type ProviderProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
