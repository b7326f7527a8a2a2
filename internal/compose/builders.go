package compose

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/util/labels"
	"github.com/imamik/exposer/internal/util/naming"
	"github.com/imamik/exposer/internal/workload"
)

// ServicePort is the port every workload Service exposes.
const ServicePort = 80

// Default headers copied from the auth response to the upstream request.
var defaultAuthResponseHeaders = []string{"X-Auth-Request-User", "X-Auth-Request-Email"}

// builder produces the object of one topology slot. A nil object means the
// slot is satisfied without emitting anything.
type builder func(p *plan) (*graph.Object, error)

// plan is the per-workload state shared by builders.
type plan struct {
	d        workload.Descriptor
	features Feature
	ns       namespace.Handle
	creds    []credentials.Credential
	infra    Infrastructure

	keys map[string]graph.ObjectKey
}

func (p *plan) meta(name, component string) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      name,
		Namespace: p.ns.Name,
		Labels: labels.NewLabelBuilder(p.d.Name).
			WithFleet(p.infra.Fleet).
			WithComponent(component).
			Build(),
	}
}

// on returns an object dependency on a slot, if that slot emitted an object.
func (p *plan) on(slot string) []graph.Dependency {
	if k, ok := p.keys[slot]; ok {
		return []graph.Dependency{graph.OnObject(k)}
	}
	return nil
}

// gated returns readiness dependencies for the non-empty subsystem names.
func gated(subsystems ...string) []graph.Dependency {
	var deps []graph.Dependency
	for _, s := range subsystems {
		if s != "" {
			deps = append(deps, graph.OnReadiness(s))
		}
	}
	return deps
}

func (p *plan) gatewaySubsystem() string {
	if p.infra.Gateway == nil {
		return ""
	}
	return p.infra.Gateway.Subsystem
}

func (p *plan) issuerSubsystem() string {
	if p.infra.Issuer == nil {
		return ""
	}
	return p.infra.Issuer.Subsystem
}

func buildNamespace(p *plan) (*graph.Object, error) {
	// Pre-created namespaces are referenced, not emitted.
	return p.ns.Object, nil
}

func buildStorageClaim(p *plan) (*graph.Object, error) {
	s := p.d.Storage
	size, err := resource.ParseQuantity(s.Size)
	if err != nil {
		return nil, fmt.Errorf("invalid storage size: %w", err)
	}

	pvc := &corev1.PersistentVolumeClaim{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: p.meta(naming.StorageClaim(p.d.Name), SlotStorage),
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
		},
	}
	if s.StorageClass != "" {
		pvc.Spec.StorageClassName = ptr.To(s.StorageClass)
	}

	return graph.NewObject(pvc, graph.OnObject(p.ns.Key()))
}

func buildRunner(p *plan) (*graph.Object, error) {
	d := p.d

	resources, err := resourceRequirements(d.Resources)
	if err != nil {
		return nil, err
	}

	app := corev1.Container{
		Name:  d.Name,
		Image: d.Image,
		Ports: []corev1.ContainerPort{{
			Name:          "http",
			ContainerPort: int32(d.Port),
			Protocol:      corev1.ProtocolTCP,
		}},
		Resources: resources,
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: ptr.To(false),
		},
	}

	pod := corev1.PodSpec{
		SecurityContext: &corev1.PodSecurityContext{
			SeccompProfile: &corev1.SeccompProfile{Type: corev1.SeccompProfileTypeRuntimeDefault},
		},
	}

	if p.features.Has(FeatureStorage) {
		app.VolumeMounts = []corev1.VolumeMount{{Name: naming.DataVolume, MountPath: d.Storage.MountPath}}
		pod.Volumes = []corev1.Volume{{
			Name: naming.DataVolume,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: naming.StorageClaim(d.Name),
				},
			},
		}}
	}

	pod.Containers = []corev1.Container{app}
	if p.features.Has(FeatureSidecar) {
		pod.Containers = append(pod.Containers, authSidecar(d))
	}

	deps := []graph.Dependency{graph.OnObject(p.ns.Key())}
	deps = append(deps, p.on(SlotStorage)...)
	for _, c := range p.creds {
		pod.ImagePullSecrets = append(pod.ImagePullSecrets, corev1.LocalObjectReference{Name: c.SecretName})
		deps = append(deps, graph.OnObject(c.Key()))
	}

	podLabels := labels.NewLabelBuilder(d.Name).WithFleet(p.infra.Fleet).WithComponent(SlotRunner).Build()
	dep := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: p.meta(naming.Runner(d.Name), SlotRunner),
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(ptr.Deref(d.Replicas, 1))),
			Selector: &metav1.LabelSelector{MatchLabels: labels.Selector(d.Name)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec:       pod,
			},
		},
	}
	// A ReadWriteOnce claim cannot be mounted by old and new pods at once.
	if p.features.Has(FeatureStorage) {
		dep.Spec.Strategy = appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType}
	}

	return graph.NewObject(dep, deps...)
}

func authSidecar(d workload.Descriptor) corev1.Container {
	args := d.Sidecar.Args
	if len(args) == 0 {
		args = []string{
			"--http-address=0.0.0.0:" + strconv.Itoa(d.Sidecar.Port),
			"--upstream=http://127.0.0.1:" + strconv.Itoa(d.Port),
		}
	}
	return corev1.Container{
		Name:  naming.AuthSidecar(d.Name),
		Image: d.Sidecar.Image,
		Args:  args,
		Ports: []corev1.ContainerPort{{
			Name:          "auth-proxy",
			ContainerPort: int32(d.Sidecar.Port),
			Protocol:      corev1.ProtocolTCP,
		}},
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: ptr.To(false),
		},
	}
}

func buildService(p *plan) (*graph.Object, error) {
	target := p.d.Port
	if p.features.Has(FeatureSidecar) {
		target = p.d.Sidecar.Port
	}

	svc := &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: p.meta(naming.Service(p.d.Name), SlotService),
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: labels.Selector(p.d.Name),
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       ServicePort,
				TargetPort: intstr.FromInt32(int32(target)),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
	return graph.NewObject(svc, p.on(SlotRunner)...)
}

func buildAuthFilter(p *plan) (*graph.Object, error) {
	backend := p.infra.AuthBackend

	address, err := forwardAuthAddress(backend.Address, p.d.AllowedEmails)
	if err != nil {
		return nil, err
	}
	responseHeaders := backend.ResponseHeaders
	if len(responseHeaders) == 0 {
		responseHeaders = defaultAuthResponseHeaders
	}

	mw := &Middleware{
		TypeMeta:   metav1.TypeMeta{APIVersion: FilterAPIVersion, Kind: FilterKind},
		ObjectMeta: p.meta(naming.AuthFilter(p.d.Name), SlotAuthFilter),
		Spec: MiddlewareSpec{
			ForwardAuth: &ForwardAuth{
				Address:             address,
				TrustForwardHeader:  true,
				AuthResponseHeaders: append([]string(nil), responseHeaders...),
				AuthRequestHeaders:  append([]string(nil), backend.RequestHeaders...),
			},
		},
	}

	deps := []graph.Dependency{graph.OnObject(p.ns.Key())}
	deps = append(deps, gated(p.gatewaySubsystem(), p.issuerSubsystem())...)
	return graph.NewObject(mw, deps...)
}

// forwardAuthAddress appends the allowed email list to the backend address.
// Entries are passed through unchanged; matching is the backend's concern.
func forwardAuthAddress(address string, emails []string) (string, error) {
	if len(emails) == 0 {
		return address, nil
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid auth backend address %q: %w", address, err)
	}
	q := u.Query()
	q.Set("allowed_emails", strings.Join(emails, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildRoute(p *plan) (*graph.Object, error) {
	gw := p.infra.Gateway

	meta := p.meta(naming.Route(p.d.Name), SlotRoute)
	if p.infra.Issuer != nil {
		meta.Annotations = map[string]string{p.infra.Issuer.AnnotationKey(): p.infra.Issuer.Name}
	}

	rule := HTTPRouteRule{
		Matches:     []HTTPRouteMatch{{Path: &HTTPPathMatch{Type: "PathPrefix", Value: "/"}}},
		BackendRefs: []BackendRef{{Name: naming.Service(p.d.Name), Port: ServicePort}},
	}
	if k, ok := p.keys[SlotAuthFilter]; ok {
		rule.Filters = []HTTPRouteFilter{{
			Type: "ExtensionRef",
			ExtensionRef: &LocalObjectReference{
				Group: FilterGroup,
				Kind:  FilterKind,
				Name:  k.Name,
			},
		}}
	}

	route := &HTTPRoute{
		TypeMeta:   metav1.TypeMeta{APIVersion: RouteAPIVersion, Kind: RouteKind},
		ObjectMeta: meta,
		Spec: HTTPRouteSpec{
			ParentRefs: []ParentReference{{
				Group:       GatewayGroup,
				Kind:        "Gateway",
				Namespace:   gw.Namespace,
				Name:        gw.Name,
				SectionName: gw.SectionName,
			}},
			Hostnames: []string{p.d.Domain},
			Rules:     []HTTPRouteRule{rule},
		},
	}

	deps := p.on(SlotService)
	deps = append(deps, p.on(SlotAuthFilter)...)
	deps = append(deps, gated(p.gatewaySubsystem(), p.issuerSubsystem())...)
	return graph.NewObject(route, deps...)
}

func buildDNSRecord(p *plan) (*graph.Object, error) {
	zone := p.infra.Zone

	ep := Endpoint{
		DNSName:    p.d.Domain,
		RecordType: "CNAME",
		// Always the shared gateway hostname, never the workload's own domain.
		Targets:   []string{p.infra.Gateway.Hostname},
		RecordTTL: zone.TTL,
	}
	if zone.Proxied != nil {
		ep.ProviderSpecific = []ProviderProperty{{
			Name:  "external-dns.alpha.kubernetes.io/cloudflare-proxied",
			Value: strconv.FormatBool(*zone.Proxied),
		}}
	}

	rec := &DNSEndpoint{
		TypeMeta:   metav1.TypeMeta{APIVersion: DNSAPIVersion, Kind: DNSKind},
		ObjectMeta: p.meta(naming.DNSRecord(p.d.Name), SlotDNSRecord),
		Spec:       DNSEndpointSpec{Endpoints: []Endpoint{ep}},
	}

	deps := p.on(SlotRoute)
	deps = append(deps, gated(zone.Subsystem)...)
	return graph.NewObject(rec, deps...)
}

func resourceRequirements(r *workload.Resources) (corev1.ResourceRequirements, error) {
	var out corev1.ResourceRequirements
	if r == nil {
		return out, nil
	}
	var err error
	if out.Requests, err = resourceList(r.Requests); err != nil {
		return out, err
	}
	if out.Limits, err = resourceList(r.Limits); err != nil {
		return out, err
	}
	return out, nil
}

func resourceList(m map[string]string) (corev1.ResourceList, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(corev1.ResourceList, len(m))
	for name, v := range m {
		q, err := resource.ParseQuantity(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s quantity %q: %w", name, v, err)
		}
		out[corev1.ResourceName(name)] = q
	}
	return out, nil
}
