package labels

// Standard label keys for workload objects.
const (
	// KeyName identifies the workload.
	KeyName = "app.kubernetes.io/name"

	// KeyInstance identifies the workload instance. Equal to the name: one
	// instance per workload per fleet.
	KeyInstance = "app.kubernetes.io/instance"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "app.kubernetes.io/managed-by"

	// KeyPartOf identifies the fleet a workload belongs to.
	KeyPartOf = "app.kubernetes.io/part-of"

	// KeyComponent identifies the role of an object within a workload.
	KeyComponent = "app.kubernetes.io/component"
)

// Pod Security Admission keys applied at namespace creation.
const (
	KeyPodSecurityEnforce = "pod-security.kubernetes.io/enforce"
	KeyPodSecurityWarn    = "pod-security.kubernetes.io/warn"
	KeyPodSecurityAudit   = "pod-security.kubernetes.io/audit"
)

// ManagedBy values
const (
	ManagedByExposer = "exposer"
)

// Pod security levels
const (
	LevelBaseline   = "baseline"
	LevelRestricted = "restricted"
)

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with workload identity pre-set.
func NewLabelBuilder(workload string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyName:      workload,
			KeyInstance:  workload,
			KeyManagedBy: ManagedByExposer,
		},
	}
}

// WithFleet adds the part-of label if fleet is non-empty.
func (lb *LabelBuilder) WithFleet(fleet string) *LabelBuilder {
	if fleet != "" {
		lb.labels[KeyPartOf] = fleet
	}
	return lb
}

// WithComponent adds a component label (e.g., "runner", "route").
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	lb.labels[KeyComponent] = component
	return lb
}

// WithIsolation adds the baseline isolation labels used on namespaces:
// enforce baseline, warn and audit on restricted.
func (lb *LabelBuilder) WithIsolation() *LabelBuilder {
	lb.labels[KeyPodSecurityEnforce] = LevelBaseline
	lb.labels[KeyPodSecurityWarn] = LevelRestricted
	lb.labels[KeyPodSecurityAudit] = LevelRestricted
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Selector returns the selector labels for a workload's pods. The same map
// is used for the Deployment selector, the pod template and the Service.
func Selector(workload string) map[string]string {
	return map[string]string{
		KeyName:     workload,
		KeyInstance: workload,
	}
}
