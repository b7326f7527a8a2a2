package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/imamik/exposer/internal/exposure"
	"github.com/imamik/exposer/internal/platform/kube"
)

const testFleet = `name: lab
baseDomain: example.com
issuer:
  name: letsencrypt-production
zone:
  domain: example.com
  id: zone-1
gateway:
  name: traefik
  namespace: traefik
  sectionName: websecure
  hostname: lb.example.net
workloads:
  - name: demo
    image: nginx:1.25
    port: 8080
`

// fakeKube records applied objects.
type fakeKube struct {
	mu        sync.Mutex
	applied   []string
	manifests [][]byte
	denyKind  string
	reader    ctrlclient.Reader
}

var _ kube.Client = (*fakeKube)(nil)

func (f *fakeKube) ApplyObject(_ context.Context, obj *unstructured.Unstructured, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj.GetKind() == f.denyKind {
		return errors.New(`admission webhook "validate.example.com" denied the request`)
	}
	f.applied = append(f.applied, obj.GetKind()+"/"+obj.GetName())
	return nil
}

func (f *fakeKube) ApplyManifests(_ context.Context, manifests []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifests = append(f.manifests, manifests)
	return nil
}

func (f *fakeKube) ServerVersion(context.Context) (string, error) {
	return "v1.31.0", nil
}

func (f *fakeKube) Reader() ctrlclient.Reader {
	if f.reader == nil {
		return fake.NewClientBuilder().Build()
	}
	return f.reader
}

// setup writes a fleet file, captures output and isolates the factories.
// Tests using it mutate package state and must not run in parallel.
func setup(t *testing.T, fleet string) (path string, out, errOut *bytes.Buffer) {
	t.Helper()

	for _, k := range []string{envCloudflareToken, envHCloudToken, "EXPOSER_DOMAIN", "EXPOSER_ZONE_ID", "EXPOSER_ISSUER", "EXPOSER_GATEWAY_HOSTNAME"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	path = filepath.Join(dir, "exposer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fleet), 0o600))

	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	origStdout, origStderr := stdout, stderr
	origKube, origZones, origHosts := newKubeClient, newZoneLookup, newHostnameLookup
	origUploader, origFinder := newExportUploader, newConflictFinder
	stdout, stderr = out, errOut
	t.Cleanup(func() {
		stdout, stderr = origStdout, origStderr
		newKubeClient, newZoneLookup, newHostnameLookup = origKube, origZones, origHosts
		newExportUploader, newConflictFinder = origUploader, origFinder
	})

	newKubeClient = func(string) (kube.Client, error) {
		return nil, errors.New("no kubeconfig")
	}
	newZoneLookup = func() exposure.ZoneLookup { return nil }
	newHostnameLookup = func(string) exposure.HostnameLookup { return nil }
	return path, out, errOut
}
