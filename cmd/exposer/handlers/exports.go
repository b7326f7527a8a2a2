package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/imamik/exposer/internal/orchestration"
	"github.com/imamik/exposer/internal/platform/s3"
)

// ExportUploader uploads run files.
type ExportUploader interface {
	Upload(ctx context.Context, bucket, fleet, runID string, files map[string][]byte) ([]string, error)
}

// newExportUploader creates the S3 uploader from the environment.
var newExportUploader = func() (ExportUploader, error) {
	endpoint := os.Getenv(envS3Endpoint)
	access := os.Getenv(envS3AccessKey)
	secret := os.Getenv(envS3SecretKey)
	if endpoint == "" || access == "" || secret == "" {
		return nil, fmt.Errorf("%s, %s and %s are required for --export-bucket", envS3Endpoint, envS3AccessKey, envS3SecretKey)
	}
	region := os.Getenv(envS3Region)
	if region == "" {
		region = "us-east-1"
	}
	return s3.NewClient(endpoint, region, access, secret, s3.WithPathStyle())
}

func uploadExports(ctx context.Context, bucket string, res *orchestration.Result, bundle []byte) error {
	up, err := newExportUploader()
	if err != nil {
		return err
	}

	exports, err := res.ExportsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode exports: %w", err)
	}
	files := map[string][]byte{s3.ExportsFile: exports}
	if len(bundle) > 0 {
		files[s3.BundleFile] = bundle
	}

	keys, err := up.Upload(ctx, bucket, res.Fleet, res.RunID, files)
	if err != nil {
		return fmt.Errorf("failed to upload exports: %w", err)
	}
	for _, k := range keys {
		log.Printf("[export] Uploaded s3://%s/%s", bucket, k)
	}
	return nil
}
