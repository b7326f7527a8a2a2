package graph

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ObjectKey identifies a managed object.
type ObjectKey struct {
	Kind      string
	Namespace string
	Name      string
}

// String returns "Kind/namespace/name", or "Kind/name" for cluster-scoped objects.
func (k ObjectKey) String() string {
	if k.Namespace == "" {
		return k.Kind + "/" + k.Name
	}
	return k.Kind + "/" + k.Namespace + "/" + k.Name
}

// Dependency is one member of an object's dependency-set: either another
// object that must already be requested, or a readiness token that must be true.
type Dependency struct {
	Object    ObjectKey
	Subsystem string
}

// OnObject returns a dependency on a previously requested object.
func OnObject(key ObjectKey) Dependency {
	return Dependency{Object: key}
}

// OnReadiness returns a dependency on the readiness token of a subsystem.
func OnReadiness(subsystem string) Dependency {
	return Dependency{Subsystem: subsystem}
}

// IsReadiness reports whether the dependency is a readiness token.
func (d Dependency) IsReadiness() bool {
	return d.Subsystem != ""
}

func (d Dependency) String() string {
	if d.IsReadiness() {
		return "readiness:" + d.Subsystem
	}
	return d.Object.String()
}

// Object is a managed object: identity, desired state and dependency-set.
type Object struct {
	Key       ObjectKey
	Desired   *unstructured.Unstructured
	DependsOn []Dependency
}

// NewObject converts a typed object into a managed object. The typed value
// must carry apiVersion and kind in its TypeMeta.
func NewObject(typed any, deps ...Dependency) (*Object, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(typed)
	if err != nil {
		return nil, fmt.Errorf("failed to convert object: %w", err)
	}

	u := &unstructured.Unstructured{Object: content}
	// Typed structs serialize a null creationTimestamp and an empty status;
	// neither belongs in a desired spec.
	unstructured.RemoveNestedField(u.Object, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(u.Object, "spec", "template", "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(u.Object, "status")
	if u.GetKind() == "" || u.GetAPIVersion() == "" {
		return nil, fmt.Errorf("object %q has no apiVersion/kind", u.GetName())
	}
	if u.GetName() == "" {
		return nil, fmt.Errorf("%s object has no name", u.GetKind())
	}

	return &Object{
		Key: ObjectKey{
			Kind:      u.GetKind(),
			Namespace: u.GetNamespace(),
			Name:      u.GetName(),
		},
		Desired:   u,
		DependsOn: deps,
	}, nil
}

// GroupVersionKind returns the GVK of the desired state.
func (o *Object) GroupVersionKind() schema.GroupVersionKind {
	return o.Desired.GroupVersionKind()
}

// DependsOnKey reports whether the object has a direct dependency on key.
func (o *Object) DependsOnKey(key ObjectKey) bool {
	for _, d := range o.DependsOn {
		if !d.IsReadiness() && d.Object == key {
			return true
		}
	}
	return false
}

// DependsOnSubsystem reports whether the object waits on the given readiness token.
func (o *Object) DependsOnSubsystem(subsystem string) bool {
	for _, d := range o.DependsOn {
		if d.Subsystem == subsystem {
			return true
		}
	}
	return false
}

// Token is the resolved value of a readiness gate for one subsystem.
type Token struct {
	Subsystem string
	Ready     bool
}
