package emit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/orchestration"
)

// SharedFile holds the namespaces and credential requests in directory output.
const SharedFile = "00-shared.yaml"

// Render writes objs as multi-document YAML in the given order.
func Render(w io.Writer, objs []*graph.Object) error {
	for i, o := range objs {
		data, err := yaml.Marshal(o.Desired.Object)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", o.Key, err)
		}
		if i > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// Bundle renders the whole result in emission order.
func Bundle(res *orchestration.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, res.Ordered()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDir writes the shared objects and one file per composed workload into
// dir and returns the written paths. Each workload file is self-contained;
// objects also present in the shared file are repeated.
func WriteDir(dir string, res *orchestration.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	write := func(name string, objs []*graph.Object) error {
		var buf bytes.Buffer
		if err := Render(&buf, objs); err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}

	if len(res.Shared) > 0 {
		if err := write(SharedFile, res.Shared); err != nil {
			return paths, err
		}
	}
	for _, g := range res.Graphs {
		if err := write(g.Workload()+".yaml", g.Objects()); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
