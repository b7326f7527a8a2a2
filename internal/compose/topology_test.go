package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/exposer/internal/workload"
)

func TestShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		features Feature
		want     []string
	}{
		{0, []string{SlotNamespace, SlotRunner, SlotService, SlotRoute}},
		{FeatureStorage, []string{SlotNamespace, SlotStorage, SlotRunner, SlotService, SlotRoute}},
		{FeatureForwardAuth | FeatureDNS, []string{SlotNamespace, SlotRunner, SlotService, SlotAuthFilter, SlotRoute, SlotDNSRecord}},
		{FeatureTLS | FeaturePullSecrets | FeatureSidecar, []string{SlotNamespace, SlotRunner, SlotService, SlotRoute}},
	}

	for _, tt := range tests {
		t.Run(tt.features.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Shape(tt.features))
		})
	}
}

func TestFeatures(t *testing.T) {
	t.Parallel()

	d := workload.Descriptor{
		AuthMode:    workload.AuthForward,
		Storage:     &workload.Storage{Size: "1Gi", MountPath: "/data"},
		PullSecrets: []string{"ghcr"},
	}
	f := Features(d, Infrastructure{Zone: &Zone{}, Issuer: &Issuer{Name: "le"}})

	assert.True(t, f.Has(FeatureStorage|FeatureForwardAuth|FeaturePullSecrets|FeatureDNS|FeatureTLS))
	assert.False(t, f.Has(FeatureSidecar))
	assert.Equal(t, "storage+forward-auth+pull-secrets+dns+tls", f.String())
	assert.Equal(t, "none", Features(workload.Descriptor{}, Infrastructure{}).String())
}

func TestZone_Contains(t *testing.T) {
	t.Parallel()

	z := Zone{Domain: "example.com"}
	assert.True(t, z.Contains("example.com"))
	assert.True(t, z.Contains("blog.example.com"))
	assert.True(t, z.Contains("Blog.Example.com."))
	assert.False(t, z.Contains("badexample.com"))
	assert.False(t, z.Contains("example.org"))
	assert.True(t, Zone{}.Contains("anything.org"))
}

func TestInfrastructure_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, withZone(withAuth(baseInfra())).Validate())

	bad := Infrastructure{
		Issuer:      &Issuer{Kind: "Other"},
		Gateway:     &Gateway{Name: "traefik"},
		SecretStore: &SecretStore{},
		AuthBackend: &AuthBackend{Address: "auth.local/verify"},
	}
	err := bad.Validate()
	assert.ErrorContains(t, err, "issuer name is required")
	assert.ErrorContains(t, err, "issuer kind")
	assert.ErrorContains(t, err, "gateway name and namespace")
	assert.ErrorContains(t, err, "secret store name and subsystem")
	assert.ErrorContains(t, err, "http(s) URL")
}

func TestIssuer_AnnotationKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cert-manager.io/cluster-issuer", Issuer{Name: "le"}.AnnotationKey())
	assert.Equal(t, "cert-manager.io/issuer", Issuer{Name: "le", Kind: "Issuer"}.AnnotationKey())
}

func TestForwardAuthAddress(t *testing.T) {
	t.Parallel()

	addr, err := forwardAuthAddress("https://auth.example.com/verify", nil)
	assert.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/verify", addr)

	addr, err = forwardAuthAddress("https://auth.example.com/verify?rd=1", []string{"team@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/verify?allowed_emails=team%40example.com&rd=1", addr)
}
