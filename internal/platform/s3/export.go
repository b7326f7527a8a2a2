package s3

import (
	"context"
	"path"
	"sort"

	"github.com/imamik/exposer/internal/util/naming"
)

// Export file names.
const (
	ExportsFile = "exports.json"
	BundleFile  = "bundle.yaml"
)

// Upload writes files under <fleet>/<runID>/ in bucket, creating the bucket
// if needed, and returns the written keys in name order.
func (c *Client) Upload(ctx context.Context, bucket, fleet, runID string, files map[string][]byte) ([]string, error) {
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	keys := make([]string, 0, len(names))
	for _, name := range names {
		key := naming.ExportObject(fleet, runID, name)
		if err := c.PutObject(ctx, bucket, key, contentType(name), files[name]); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
