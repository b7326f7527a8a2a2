package credentials

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ExternalSecret API identity.
const (
	APIVersion = "external-secrets.io/v1beta1"
	Kind       = "ExternalSecret"
)

// ExternalSecret requests synchronization of a remote secret into a namespace.
type ExternalSecret struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ExternalSecretSpec `json:"spec"`
}

// ExternalSecretSpec is the desired synchronization.
type ExternalSecretSpec struct {
	RefreshInterval *metav1.Duration `json:"refreshInterval,omitempty"`
	SecretStoreRef  SecretStoreRef   `json:"secretStoreRef"`
	Target          Target           `json:"target"`
	Data            []Data           `json:"data,omitempty"`
}

// SecretStoreRef names the store the secret is read from.
type SecretStoreRef struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Target describes the Kubernetes Secret to materialize.
type Target struct {
	Name           string    `json:"name"`
	CreationPolicy string    `json:"creationPolicy,omitempty"`
	Template       *Template `json:"template,omitempty"`
}

// Template shapes the materialized Secret.
type Template struct {
	Type string `json:"type,omitempty"`
}

// Data maps one remote property to one secret key.
type Data struct {
	SecretKey string    `json:"secretKey"`
	RemoteRef RemoteRef `json:"remoteRef"`
}

// RemoteRef points at a remote secret property.
type RemoteRef struct {
	Key      string `json:"key"`
	Property string `json:"property,omitempty"`
}
