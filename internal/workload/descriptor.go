// Package workload defines the Workload Descriptor: the declarative input
// describing how one application is exposed on the cluster.
package workload

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/utils/ptr"
)

// domainRegex matches fully-qualified host names.
var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

// MaxReplicas bounds the replica count a descriptor may request.
const MaxReplicas = 50

// AuthMode selects how requests to a workload are authenticated.
type AuthMode string

const (
	// AuthNone exposes the workload without authentication.
	AuthNone AuthMode = "NONE"
	// AuthForward delegates authorization to the shared forward-auth backend.
	AuthForward AuthMode = "FORWARD"
)

// ValidAuthModes returns all valid modes.
func ValidAuthModes() []AuthMode {
	return []AuthMode{AuthNone, AuthForward}
}

// Normalize upper-cases the mode and maps the empty value to AuthNone.
func (m AuthMode) Normalize() AuthMode {
	if m == "" {
		return AuthNone
	}
	return AuthMode(strings.ToUpper(string(m)))
}

// IsValid returns true if the mode is known.
func (m AuthMode) IsValid() bool {
	switch m.Normalize() {
	case AuthNone, AuthForward:
		return true
	default:
		return false
	}
}

// Storage requests a persistent volume claim mounted into the runner.
type Storage struct {
	Size         string `yaml:"size"`
	MountPath    string `yaml:"mountPath"`
	StorageClass string `yaml:"storageClass,omitempty"`
}

// Resources holds container resource requests and limits keyed by resource
// name (cpu, memory, ephemeral-storage).
type Resources struct {
	Requests map[string]string `yaml:"requests,omitempty"`
	Limits   map[string]string `yaml:"limits,omitempty"`
}

// AuthSidecar requests an authenticating proxy container in front of the workload.
type AuthSidecar struct {
	Image string   `yaml:"image"`
	Port  int      `yaml:"port"`
	Args  []string `yaml:"args,omitempty"`
}

// Descriptor describes one exposed workload.
type Descriptor struct {
	// Name identifies the workload. DNS-safe, at most 63 characters.
	Name string `yaml:"name"`

	// Image is the container image reference.
	Image string `yaml:"image"`

	// Domain is the externally reachable host name.
	Domain string `yaml:"domain"`

	// Port is the container port the workload listens on.
	Port int `yaml:"port"`

	// Replicas is the desired replica count. Unset means one; zero scales
	// the runner down while keeping its route and DNS record.
	Replicas *int `yaml:"replicas,omitempty"`

	// AuthMode selects NONE or FORWARD authentication.
	AuthMode AuthMode `yaml:"authMode,omitempty"`

	// AllowedEmails is passed verbatim to the forward-auth backend.
	AllowedEmails []string `yaml:"allowedEmails,omitempty"`

	// Sidecar requests an auth-proxy sidecar. Mutually exclusive with FORWARD.
	Sidecar *AuthSidecar `yaml:"authSidecar,omitempty"`

	// Storage requests persistent storage.
	Storage *Storage `yaml:"storage,omitempty"`

	// PullSecrets lists credential IDs whose synchronized secrets the runner pulls with.
	PullSecrets []string `yaml:"pullSecrets,omitempty"`

	// Resources holds optional request/limit pairs.
	Resources *Resources `yaml:"resources,omitempty"`

	// Namespace names a pre-created namespace to reuse instead of creating one.
	Namespace string `yaml:"namespace,omitempty"`
}

// WithDefaults returns a copy with defaults applied.
func (d Descriptor) WithDefaults() Descriptor {
	out := d.Clone()
	if out.Replicas == nil {
		out.Replicas = ptr.To(1)
	}
	out.AuthMode = out.AuthMode.Normalize()
	return out
}

// Clone returns a deep copy, so the caller's descriptor cannot be mutated downstream.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.AllowedEmails = append([]string(nil), d.AllowedEmails...)
	out.PullSecrets = append([]string(nil), d.PullSecrets...)
	if d.Replicas != nil {
		out.Replicas = ptr.To(*d.Replicas)
	}
	if d.Sidecar != nil {
		s := *d.Sidecar
		s.Args = append([]string(nil), d.Sidecar.Args...)
		out.Sidecar = &s
	}
	if d.Storage != nil {
		s := *d.Storage
		out.Storage = &s
	}
	if d.Resources != nil {
		out.Resources = &Resources{
			Requests: copyMap(d.Resources.Requests),
			Limits:   copyMap(d.Resources.Limits),
		}
	}
	return out
}

// HasStorage returns true if persistent storage is requested.
func (d Descriptor) HasStorage() bool {
	return d.Storage != nil
}

// UsesForwardAuth returns true if the FORWARD mode is requested.
func (d Descriptor) UsesForwardAuth() bool {
	return d.AuthMode.Normalize() == AuthForward
}

// UsesSidecar returns true if an auth-proxy sidecar is requested.
func (d Descriptor) UsesSidecar() bool {
	return d.Sidecar != nil
}

// HasPullSecrets returns true if the runner pulls with synchronized credentials.
func (d Descriptor) HasPullSecrets() bool {
	return len(d.PullSecrets) > 0
}

// Validate checks the descriptor's own fields. Checks that depend on shared
// infrastructure belong to composition.
func (d Descriptor) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if msgs := validation.IsDNS1123Label(d.Name); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("name %q must be DNS-safe: %s", d.Name, strings.Join(msgs, "; ")))
	}

	if strings.TrimSpace(d.Image) == "" {
		errs = append(errs, errors.New("image is required"))
	}

	if d.Domain == "" {
		errs = append(errs, errors.New("domain is required"))
	} else if !isValidDomain(d.Domain) {
		errs = append(errs, fmt.Errorf("domain %q must be a valid domain name", d.Domain))
	}

	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be 1-65535, got %d", d.Port))
	}

	if n := ptr.Deref(d.Replicas, 1); n < 0 || n > MaxReplicas {
		errs = append(errs, fmt.Errorf("replicas must be 0-%d, got %d", MaxReplicas, n))
	}

	if !d.AuthMode.IsValid() {
		errs = append(errs, fmt.Errorf("authMode must be one of: %v", ValidAuthModes()))
	}
	if len(d.AllowedEmails) > 0 && !d.UsesForwardAuth() {
		errs = append(errs, errors.New("allowedEmails requires authMode FORWARD"))
	}

	if d.Sidecar != nil {
		if strings.TrimSpace(d.Sidecar.Image) == "" {
			errs = append(errs, errors.New("authSidecar.image is required"))
		}
		if d.Sidecar.Port < 1 || d.Sidecar.Port > 65535 {
			errs = append(errs, fmt.Errorf("authSidecar.port must be 1-65535, got %d", d.Sidecar.Port))
		} else if d.Sidecar.Port == d.Port {
			errs = append(errs, errors.New("authSidecar.port must differ from port"))
		}
	}

	if d.Storage != nil {
		errs = append(errs, d.Storage.validate()...)
	}

	seen := make(map[string]bool)
	for _, id := range d.PullSecrets {
		if id == "" {
			errs = append(errs, errors.New("pullSecrets entries must not be empty"))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("pullSecrets entry %q is duplicated", id))
		}
		seen[id] = true
	}

	if d.Resources != nil {
		errs = append(errs, d.Resources.validate()...)
	}

	if d.Namespace != "" {
		if msgs := validation.IsDNS1123Label(d.Namespace); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("namespace %q is invalid: %s", d.Namespace, strings.Join(msgs, "; ")))
		}
	}

	return errors.Join(errs...)
}

func (s *Storage) validate() []error {
	var errs []error
	if s.Size == "" {
		errs = append(errs, errors.New("storage.size is required"))
	} else if q, err := resource.ParseQuantity(s.Size); err != nil {
		errs = append(errs, fmt.Errorf("storage.size %q is not a quantity: %w", s.Size, err))
	} else if q.Sign() <= 0 {
		errs = append(errs, fmt.Errorf("storage.size must be positive, got %s", s.Size))
	}
	if !strings.HasPrefix(s.MountPath, "/") {
		errs = append(errs, fmt.Errorf("storage.mountPath must be absolute, got %q", s.MountPath))
	}
	return errs
}

var knownResources = map[string]bool{"cpu": true, "memory": true, "ephemeral-storage": true}

func (r *Resources) validate() []error {
	var errs []error
	check := func(section string, m map[string]string) map[string]resource.Quantity {
		out := make(map[string]resource.Quantity, len(m))
		for name, v := range m {
			if !knownResources[name] {
				errs = append(errs, fmt.Errorf("resources.%s: unknown resource %q", section, name))
				continue
			}
			q, err := resource.ParseQuantity(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("resources.%s.%s %q is not a quantity: %w", section, name, v, err))
				continue
			}
			out[name] = q
		}
		return out
	}

	requests := check("requests", r.Requests)
	limits := check("limits", r.Limits)
	for name, req := range requests {
		if lim, ok := limits[name]; ok && req.Cmp(lim) > 0 {
			errs = append(errs, fmt.Errorf("resources: %s request %s exceeds limit %s", name, req.String(), lim.String()))
		}
	}
	return errs
}

func isValidDomain(domain string) bool {
	if len(domain) > 253 {
		return false
	}
	return domainRegex.MatchString(domain)
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
