package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/imamik/exposer/internal/platform/kube"
)

// ApplyBundle applies a previously rendered bundle file as-is.
func ApplyBundle(ctx context.Context, path, kubeconfig string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	c, err := newKubeClient(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}

	log.Printf("[apply] Applying bundle %s", path)
	if err := c.ApplyManifests(ctx, data, kube.FieldManager); err != nil {
		return fmt.Errorf("failed to apply bundle: %w", err)
	}
	return nil
}
