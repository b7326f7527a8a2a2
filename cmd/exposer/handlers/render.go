package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/imamik/exposer/internal/emit"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/ui"
)

// Output streams, replaceable in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// RenderOptions configure the render command.
type RenderOptions struct {
	RunOptions
	// OutputDir receives one file per workload. Empty writes the bundle to stdout.
	OutputDir string
}

// Render composes the fleet and writes manifests without touching the cluster.
//
// Readiness is probed against the cluster unless AssumeReady is set, in which
// case every subsystem is treated as ready.
func Render(ctx context.Context, opts RenderOptions) error {
	probe, err := renderProbe(opts.RunOptions)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, opts.ConfigPath, probe)
	if err != nil {
		return err
	}
	res, err := p.run(ctx)
	if err != nil {
		return err
	}

	bundle, err := emit.Bundle(res)
	if err != nil {
		return err
	}

	if opts.OutputDir == "" {
		if _, err := stdout.Write(bundle); err != nil {
			return fmt.Errorf("failed to write bundle: %w", err)
		}
	} else {
		files, err := emit.WriteDir(opts.OutputDir, res)
		if err != nil {
			return err
		}
		log.Printf("[render] Wrote %d files to %s", len(files), opts.OutputDir)
	}

	ui.NewPrinter(stderr, isInteractive()).Summary(res)

	if err := p.finish(ctx, opts.RunOptions, res, bundle); err != nil {
		return err
	}
	return failureError(res)
}

func renderProbe(opts RunOptions) (readiness.Probe, error) {
	if opts.AssumeReady {
		return readiness.AllReady(), nil
	}
	c, err := newKubeClient(opts.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster (use --assume-ready to render offline): %w", err)
	}
	return readiness.NewKubeProbe(c.Reader()), nil
}

func isInteractive() bool {
	f, ok := stderr.(*os.File)
	return ok && ui.IsInteractive(f)
}
