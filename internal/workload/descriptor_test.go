package workload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func validDescriptor() Descriptor {
	return Descriptor{
		Name:   "demo",
		Image:  "nginx:1.25",
		Domain: "demo.example.com",
		Port:   8080,
	}
}

func TestDescriptor_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(d *Descriptor)
		wantErr string
	}{
		{name: "valid minimal", mutate: func(*Descriptor) {}},
		{
			name: "valid full",
			mutate: func(d *Descriptor) {
				d.Replicas = ptr.To(3)
				d.AuthMode = AuthForward
				d.AllowedEmails = []string{"a@example.com"}
				d.Storage = &Storage{Size: "5Gi", MountPath: "/data"}
				d.PullSecrets = []string{"ghcr"}
				d.Resources = &Resources{
					Requests: map[string]string{"cpu": "100m", "memory": "128Mi"},
					Limits:   map[string]string{"cpu": "500m", "memory": "256Mi"},
				}
			},
		},
		{name: "lowercase auth mode", mutate: func(d *Descriptor) { d.AuthMode = "forward" }},
		{name: "missing name", mutate: func(d *Descriptor) { d.Name = "" }, wantErr: "name is required"},
		{name: "uppercase name", mutate: func(d *Descriptor) { d.Name = "Demo" }, wantErr: "DNS-safe"},
		{name: "long name", mutate: func(d *Descriptor) { d.Name = strings.Repeat("a", 64) }, wantErr: "DNS-safe"},
		{name: "missing image", mutate: func(d *Descriptor) { d.Image = " " }, wantErr: "image is required"},
		{name: "bad domain", mutate: func(d *Descriptor) { d.Domain = "not a domain" }, wantErr: "valid domain"},
		{name: "port zero", mutate: func(d *Descriptor) { d.Port = 0 }, wantErr: "port must be 1-65535"},
		{name: "scaled to zero", mutate: func(d *Descriptor) { d.Replicas = ptr.To(0) }},
		{name: "negative replicas", mutate: func(d *Descriptor) { d.Replicas = ptr.To(-1) }, wantErr: "replicas"},
		{name: "too many replicas", mutate: func(d *Descriptor) { d.Replicas = ptr.To(MaxReplicas + 1) }, wantErr: "replicas must be 0-50"},
		{name: "unknown auth mode", mutate: func(d *Descriptor) { d.AuthMode = "BASIC" }, wantErr: "authMode"},
		{
			name:    "emails without forward",
			mutate:  func(d *Descriptor) { d.AllowedEmails = []string{"a@example.com"} },
			wantErr: "allowedEmails requires authMode FORWARD",
		},
		{
			name:    "sidecar port clash",
			mutate:  func(d *Descriptor) { d.Sidecar = &AuthSidecar{Image: "proxy:1", Port: 8080} },
			wantErr: "must differ from port",
		},
		{
			name:    "storage size not a quantity",
			mutate:  func(d *Descriptor) { d.Storage = &Storage{Size: "lots", MountPath: "/data"} },
			wantErr: "not a quantity",
		},
		{
			name:    "storage relative mount",
			mutate:  func(d *Descriptor) { d.Storage = &Storage{Size: "1Gi", MountPath: "data"} },
			wantErr: "mountPath must be absolute",
		},
		{
			name:    "duplicate pull secret",
			mutate:  func(d *Descriptor) { d.PullSecrets = []string{"ghcr", "ghcr"} },
			wantErr: "duplicated",
		},
		{
			name: "request above limit",
			mutate: func(d *Descriptor) {
				d.Resources = &Resources{
					Requests: map[string]string{"memory": "1Gi"},
					Limits:   map[string]string{"memory": "512Mi"},
				}
			},
			wantErr: "exceeds limit",
		},
		{
			name:    "unknown resource",
			mutate:  func(d *Descriptor) { d.Resources = &Resources{Limits: map[string]string{"gpu": "1"}} },
			wantErr: "unknown resource",
		},
		{name: "bad namespace", mutate: func(d *Descriptor) { d.Namespace = "Shared_NS" }, wantErr: "namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validDescriptor()
			tt.mutate(&d)

			err := d.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDescriptor_ValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	err := Descriptor{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "image is required")
	assert.Contains(t, err.Error(), "domain is required")
	assert.Contains(t, err.Error(), "port must be")
}

func TestDescriptor_WithDefaults(t *testing.T) {
	t.Parallel()

	d := validDescriptor()
	d.AuthMode = "forward"
	out := d.WithDefaults()

	assert.Equal(t, ptr.To(1), out.Replicas)
	assert.Equal(t, AuthForward, out.AuthMode)
	assert.True(t, out.UsesForwardAuth())
	// original untouched
	assert.Nil(t, d.Replicas)
	assert.Equal(t, AuthMode("forward"), d.AuthMode)
}

func TestDescriptor_WithDefaultsKeepsZeroReplicas(t *testing.T) {
	t.Parallel()

	d := validDescriptor()
	d.Replicas = ptr.To(0)
	out := d.WithDefaults()

	require.NotNil(t, out.Replicas)
	assert.Equal(t, 0, *out.Replicas)
	assert.NotSame(t, d.Replicas, out.Replicas)
}

func TestDescriptor_CloneIsDeep(t *testing.T) {
	t.Parallel()

	d := validDescriptor()
	d.Storage = &Storage{Size: "1Gi", MountPath: "/data"}
	d.PullSecrets = []string{"ghcr"}
	d.Sidecar = &AuthSidecar{Image: "proxy:1", Port: 4180, Args: []string{"--upstream"}}
	d.Resources = &Resources{Limits: map[string]string{"cpu": "1"}}

	c := d.Clone()
	c.Storage.Size = "2Gi"
	c.PullSecrets[0] = "other"
	c.Sidecar.Args[0] = "--changed"
	c.Resources.Limits["cpu"] = "2"

	assert.Equal(t, "1Gi", d.Storage.Size)
	assert.Equal(t, "ghcr", d.PullSecrets[0])
	assert.Equal(t, "--upstream", d.Sidecar.Args[0])
	assert.Equal(t, "1", d.Resources.Limits["cpu"])
}

func TestDescriptor_FeaturePredicates(t *testing.T) {
	t.Parallel()

	d := validDescriptor()
	assert.False(t, d.HasStorage())
	assert.False(t, d.UsesForwardAuth())
	assert.False(t, d.UsesSidecar())
	assert.False(t, d.HasPullSecrets())

	d.Storage = &Storage{Size: "1Gi", MountPath: "/data"}
	d.AuthMode = AuthForward
	d.Sidecar = &AuthSidecar{Image: "proxy:1", Port: 4180}
	d.PullSecrets = []string{"ghcr"}
	assert.True(t, d.HasStorage())
	assert.True(t, d.UsesForwardAuth())
	assert.True(t, d.UsesSidecar())
	assert.True(t, d.HasPullSecrets())
}
