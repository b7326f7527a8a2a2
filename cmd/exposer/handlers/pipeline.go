// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/imamik/exposer/internal/config"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/exposure"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/orchestration"
	"github.com/imamik/exposer/internal/platform/cloudflare"
	"github.com/imamik/exposer/internal/platform/hcloud"
	"github.com/imamik/exposer/internal/platform/kube"
	"github.com/imamik/exposer/internal/readiness"
)

// Environment variables read by the handlers.
const (
	envCloudflareToken = "CF_API_TOKEN"
	envHCloudToken     = "HCLOUD_TOKEN"
	envS3Endpoint      = "EXPOSER_S3_ENDPOINT"
	envS3Region        = "EXPOSER_S3_REGION"
	envS3AccessKey     = "EXPOSER_S3_ACCESS_KEY"
	envS3SecretKey     = "EXPOSER_S3_SECRET_KEY"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile locates exposer.yaml when no path is given.
	findConfigFile = config.FindConfigFile

	// loadConfig loads and validates a fleet file.
	loadConfig = config.Load

	// newKubeClient creates a cluster client from a kubeconfig path.
	newKubeClient = func(path string) (kube.Client, error) {
		data, err := kube.LoadKubeconfig(path)
		if err != nil {
			return nil, err
		}
		return kube.NewFromKubeconfig(data)
	}

	// newZoneLookup creates the DNS zone lookup, or nil without a token.
	newZoneLookup = func() exposure.ZoneLookup {
		token := os.Getenv(envCloudflareToken)
		if token == "" {
			return nil
		}
		return cloudflare.NewClient(token)
	}

	// newHostnameLookup creates the gateway hostname lookup, or nil when
	// no load balancer is named or no token is set.
	newHostnameLookup = func(loadBalancer string) exposure.HostnameLookup {
		token := os.Getenv(envHCloudToken)
		if token == "" || loadBalancer == "" {
			return nil
		}
		return hcloud.NewGatewayLookup(hcloud.NewClient(token), loadBalancer)
	}
)

// RunOptions are the flags shared by render and apply.
type RunOptions struct {
	ConfigPath   string
	Kubeconfig   string
	AssumeReady  bool
	MetricsFile  string
	ExportBucket string
}

// pipeline is one loaded fleet with its run root.
type pipeline struct {
	configPath string
	fleet      *config.Fleet
	root       *orchestration.Root
	metrics    *metrics.Recorder
	input      orchestration.Fleet
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	found, err := findConfigFile()
	if err != nil {
		return "", fmt.Errorf("no config file given and %w", err)
	}
	return found, nil
}

// buildPipeline loads the fleet file and wires the run root over probe.
func buildPipeline(ctx context.Context, configPath string, probe readiness.Probe) (*pipeline, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	fleet, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	workloads, fileErrs, err := fleet.LoadWorkloads(path)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	deps := exposure.Deps{
		Gate: readiness.NewGate(probe, fleet.SubsystemDeclarations(),
			readiness.WithBudget(config.LoadBudget()),
			readiness.WithMetrics(rec)),
		Resolver: namespace.NewResolver(fleet.Name),
		Metrics:  rec,
	}
	if store, ok := fleet.Store(); ok {
		d, err := credentials.NewDistributor(store, fleet.Name, fleet.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to configure credentials: %w", err)
		}
		deps.Distributor = d
	}

	var opts []exposure.Option
	if l := newZoneLookup(); l != nil {
		opts = append(opts, exposure.WithZoneLookup(l))
	}
	if fleet.Gateway != nil {
		if l := newHostnameLookup(fleet.Gateway.LoadBalancer); l != nil {
			opts = append(opts, exposure.WithHostnameLookup(l))
		}
	}

	ec, err := exposure.BuildContext(ctx, fleet.Refs(), deps, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build exposure context: %w", err)
	}

	input := orchestration.Fleet{Name: fleet.Name, Workloads: workloads}
	for _, fe := range fileErrs {
		log.Printf("[config] Skipping %s", fe.Error())
		input.Rejected = append(input.Rejected, orchestration.Failure{
			Workload: config.WorkloadNameFromPath(fe.Path),
			Kind:     graph.MalformedDescriptor,
			Message:  fe.Error(),
			Err:      fe,
		})
	}

	return &pipeline{
		configPath: path,
		fleet:      fleet,
		root:       orchestration.NewRoot(ec, deps),
		metrics:    rec,
		input:      input,
	}, nil
}

func (p *pipeline) run(ctx context.Context) (*orchestration.Result, error) {
	log.Printf("[run] Starting run %s for fleet %s (%d workloads)", p.root.RunID(), p.fleet.Name, len(p.input.Workloads))
	res, err := p.root.Run(ctx, p.input)
	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}
	return res, nil
}

// finish writes metrics and uploads exports. Both are optional.
func (p *pipeline) finish(ctx context.Context, opts RunOptions, res *orchestration.Result, bundle []byte) error {
	if opts.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}
	if opts.ExportBucket != "" {
		if err := uploadExports(ctx, opts.ExportBucket, res, bundle); err != nil {
			return err
		}
	}
	return nil
}

func failureError(res *orchestration.Result) error {
	if len(res.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d workloads failed", len(res.Failures), len(res.Failures)+len(res.Graphs))
}
