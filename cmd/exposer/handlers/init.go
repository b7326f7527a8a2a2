package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	hcloudgo "github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/exposer/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// fetchLoadBalancers fills the wizard's load balancer choices.
	fetchLoadBalancers = func(ctx context.Context, token string) error {
		return config.FetchLoadBalancerOptions(ctx, hcloudgo.NewClient(hcloudgo.WithToken(token)))
	}

	// runWizard runs the interactive wizard.
	runWizard = config.RunWizard

	// saveConfig writes the fleet file.
	saveConfig = config.Save
)

// Init runs the configuration wizard and writes a starter fleet file.
func Init(ctx context.Context, outputPath string) error {
	if outputPath == "" {
		outputPath = config.DefaultConfigFilename
	}
	if fileExists(outputPath) {
		_, _ = fmt.Fprintf(stdout, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	if token := os.Getenv(envHCloudToken); token != "" {
		if err := fetchLoadBalancers(ctx, token); err != nil {
			log.Printf("[init] Could not list load balancers: %v", err)
		}
	}

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	fleet := result.ToFleet()
	if err := fleet.Validate(); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}
	if err := saveConfig(fleet, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Wrote %s for fleet %s.\n", outputPath, fleet.Name)
	_, _ = fmt.Fprintln(stdout, "Next steps:")
	_, _ = fmt.Fprintf(stdout, "  exposer doctor -c %s\n", outputPath)
	_, _ = fmt.Fprintf(stdout, "  exposer render -c %s --assume-ready\n", outputPath)
	return nil
}
