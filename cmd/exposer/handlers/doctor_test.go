package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/exposer/internal/platform/cloudflare"
	"github.com/imamik/exposer/internal/platform/kube"
)

type fakeFinder struct {
	conflicts []cloudflare.Conflict
	hosts     []string
	target    string
}

func (f *fakeFinder) GetZoneID(context.Context, string) (string, error) {
	return "zone-looked-up", nil
}

func (f *fakeFinder) FindConflicts(_ context.Context, _ string, hosts []string, target string) ([]cloudflare.Conflict, error) {
	f.hosts, f.target = hosts, target
	return f.conflicts, nil
}

func TestDoctor_NoClusterNoToken(t *testing.T) {
	path, out, _ := setup(t, testFleet)
	newConflictFinder = func() ConflictFinder { return nil }

	require.NoError(t, Doctor(context.Background(), DoctorOptions{ConfigPath: path}))

	s := out.String()
	assert.Contains(t, s, "[OK]  fleet file")
	assert.Contains(t, s, "[OK]  demo")
	assert.Contains(t, s, "skipped: no kubeconfig")
	assert.Contains(t, s, "CF_API_TOKEN not set")
}

func TestDoctor_SubsystemsMissing(t *testing.T) {
	path, out, _ := setup(t, testFleet)
	newKubeClient = func(string) (kube.Client, error) { return &fakeKube{}, nil }
	newConflictFinder = func() ConflictFinder { return nil }

	err := Doctor(context.Background(), DoctorOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 checks failed")
	assert.Contains(t, out.String(), "v1.31.0")
	assert.Contains(t, out.String(), "controller traefik/traefik not found")
}

func TestDoctor_DNSConflictsWarn(t *testing.T) {
	path, out, _ := setup(t, testFleet)
	finder := &fakeFinder{conflicts: []cloudflare.Conflict{{
		Host:   "demo.example.com",
		Record: cloudflare.Record{Type: "A", Name: "demo.example.com", Content: "192.0.2.1"},
	}}}
	newConflictFinder = func() ConflictFinder { return finder }

	require.NoError(t, Doctor(context.Background(), DoctorOptions{ConfigPath: path}))

	assert.Equal(t, []string{"demo.example.com"}, finder.hosts)
	assert.Equal(t, "lb.example.net", finder.target)
	assert.Contains(t, out.String(), "[??]  demo.example.com")
	assert.Contains(t, out.String(), "already has A record -> 192.0.2.1")
}

func TestDoctor_InvalidWorkload(t *testing.T) {
	path, out, _ := setup(t, testFleet+`  - name: broken
    image: nginx
`)
	newConflictFinder = func() ConflictFinder { return nil }

	err := Doctor(context.Background(), DoctorOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, out.String(), "[!!]  broken")
	assert.Contains(t, out.String(), "port must be 1-65535")
}

func TestDoctor_InvalidConfig(t *testing.T) {
	path, out, _ := setup(t, "name: Not_A_Label\n")

	err := Doctor(context.Background(), DoctorOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Contains(t, out.String(), "[!!]")
}
