package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/exposer/internal/emit"
	"github.com/imamik/exposer/internal/orchestration"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/ui"
)

type resultApplier interface {
	Apply(ctx context.Context, res *orchestration.Result) (int, error)
}

// newApplier creates the server-side applier, replaceable in tests.
var newApplier = func(c emit.ObjectApplier, opts ...emit.ApplierOption) resultApplier {
	return emit.NewApplier(c, opts...)
}

// Apply composes the fleet and applies it to the cluster with server-side apply.
//
// This function:
//  1. Connects to the cluster and probes subsystem readiness there
//  2. Runs the fleet pass
//  3. Applies shared objects, then each workload graph
//  4. Prints the summary and optionally writes metrics and uploads exports
//
// A workload rejected by admission is reported as failed; the others are applied.
func Apply(ctx context.Context, opts RunOptions) error {
	c, err := newKubeClient(opts.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}

	var probe readiness.Probe = readiness.AllReady()
	if !opts.AssumeReady {
		probe = readiness.NewKubeProbe(c.Reader())
	}

	p, err := buildPipeline(ctx, opts.ConfigPath, probe)
	if err != nil {
		return err
	}
	res, err := p.run(ctx)
	if err != nil {
		return err
	}

	applier := newApplier(c, emit.WithApplyMetrics(p.metrics))
	n, applyErr := applier.Apply(ctx, res)
	log.Printf("[apply] Applied %d objects", n)

	ui.NewPrinter(stderr, isInteractive()).Summary(res)

	if applyErr != nil {
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	bundle, err := emit.Bundle(res)
	if err != nil {
		return err
	}
	if err := p.finish(ctx, opts, res, bundle); err != nil {
		return err
	}
	return failureError(res)
}
