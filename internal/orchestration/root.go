package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/exposure"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/util/async"
	"github.com/imamik/exposer/internal/workload"
)

// Fleet is the input of one run.
type Fleet struct {
	Name      string
	Workloads []workload.Descriptor

	// Rejected are descriptors that failed before reaching the run, for
	// example files that could not be parsed. They are reported as failures.
	Rejected []Failure
}

// Root drives one fleet run. Only the root requests fleet-wide credential
// distribution.
type Root struct {
	exposure    *exposure.Context
	gate        exposure.Gate
	resolver    *namespace.Resolver
	distributor *credentials.Distributor
	runID       string
}

// Option configures a Root.
type Option func(*Root)

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(r *Root) {
		r.runID = id
	}
}

// NewRoot creates a root over a context and the collaborators it was built with.
func NewRoot(ec *exposure.Context, deps exposure.Deps, opts ...Option) *Root {
	r := &Root{
		exposure:    ec,
		gate:        deps.Gate,
		resolver:    deps.Resolver,
		distributor: deps.Distributor,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID returns the run's identifier.
func (r *Root) RunID() string {
	return r.runID
}

type entry struct {
	name string
	spec workload.Descriptor
}

// Run executes the fleet pass. The returned error is reserved for failures
// that prevent any output; per-workload problems are in Result.Failures.
func (r *Root) Run(ctx context.Context, fleet Fleet) (*Result, error) {
	logger := log.FromContext(ctx).WithValues("fleet", fleet.Name, "runID", r.runID)
	ctx = log.IntoContext(ctx, logger)

	res := &Result{
		Fleet:    fleet.Name,
		RunID:    r.runID,
		Failures: append([]Failure(nil), fleet.Rejected...),
		Exports:  make(map[string]Export),
	}

	// 1. Enumerate.
	entries := r.enumerate(fleet, res)
	logger.Info("enumerated workloads", "accepted", len(entries), "rejected", len(res.Failures))

	// 2. Namespaces exist before anything targets them.
	var accepted []entry
	for _, e := range entries {
		if _, err := r.resolver.Resolve(e.name, e.spec.Namespace); err != nil {
			res.Failures = append(res.Failures, newFailure(e.name, err))
			continue
		}
		accepted = append(accepted, e)
	}

	// Gates are independent; wait on them concurrently.
	unresolved := r.warmGates(ctx)

	// 3. Fleet-wide credentials into every namespace plus the default one.
	if err := r.distributeFleet(ctx, res); err != nil {
		return nil, err
	}

	// 4. Compose each workload in isolation.
	for _, e := range accepted {
		exp, err := r.exposure.ExposeWorkload(ctx, e.name, e.spec)
		if err != nil {
			f := newFailure(e.name, err)
			logger.Info("workload failed", "workload", e.name, "kind", f.Kind, "error", err)
			res.Failures = append(res.Failures, f)
			continue
		}
		// Pull-secret requests are only emitted for graphs that composed.
		if r.distributor != nil {
			r.distributor.Commit(exp.Credentials)
		}
		res.Graphs = append(res.Graphs, exp.Graph)
		res.Exports[e.name] = exportOf(exp.Graph)
	}

	// 5. Aggregate.
	res.Shared = r.resolver.Objects()
	if r.distributor != nil {
		res.Shared = append(res.Shared, r.distributor.Objects()...)
		res.Advisories = r.distributor.Advisories()
	}
	res.Tokens = r.tokens()
	res.Warnings = warningsFor(unresolved, res.Failures)

	logger.Info("fleet run complete",
		"composed", len(res.Graphs), "failed", len(res.Failures), "objects", len(res.Ordered()))
	return res, nil
}

// enumerate drops descriptors that cannot be run and records why.
func (r *Root) enumerate(fleet Fleet, res *Result) []entry {
	seen := make(map[string]bool, len(fleet.Workloads))
	var out []entry
	for i, spec := range fleet.Workloads {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("workloads[%d]", i)
			res.Failures = append(res.Failures, newFailure(name, graph.Malformed(name, errors.New("name is required"))))
			continue
		}
		if seen[name] {
			res.Failures = append(res.Failures, newFailure(name,
				graph.Malformed(name, fmt.Errorf("duplicate workload name (entry %d)", i))))
			continue
		}
		seen[name] = true

		if _, err := r.exposure.Prepare(name, spec); err != nil {
			res.Failures = append(res.Failures, newFailure(name, err))
			continue
		}
		out = append(out, entry{name: name, spec: spec})
	}
	return out
}

func (r *Root) warmGates(ctx context.Context) async.Results {
	subsystems := r.exposure.Subsystems()
	tasks := make([]async.Task, 0, len(subsystems))
	for _, s := range subsystems {
		tasks = append(tasks, async.Task{
			Name: s,
			Func: func(ctx context.Context) error {
				_, err := r.gate.Await(ctx, s)
				return err
			},
		})
	}
	res := async.RunAll(ctx, tasks)
	if err := res.Err(); err != nil {
		log.FromContext(ctx).Info("subsystems not ready", "error", err)
	}
	return res
}

func (r *Root) distributeFleet(ctx context.Context, res *Result) error {
	if !r.exposure.HasSecretStore() {
		return nil
	}
	logger := log.FromContext(ctx)

	token, err := r.exposure.SecretStoreToken(ctx)
	if err != nil {
		// Workloads needing credentials fail on their own; the rest proceed.
		logger.Info("skipping credential distribution", "error", err)
		return nil
	}

	objs, err := r.distributor.DistributeFleet(r.resolver.Names(), token)
	if err != nil {
		return fmt.Errorf("failed to distribute fleet credentials: %w", err)
	}
	logger.V(1).Info("distributed fleet credentials", "requests", len(objs))
	return nil
}

func (r *Root) tokens() []graph.Token {
	if t, ok := r.gate.(interface{ Tokens() []graph.Token }); ok {
		return t.Tokens()
	}
	return nil
}

// warningsFor reports each unresolved subsystem with the workloads it blocked.
func warningsFor(unresolved map[string]error, failures []Failure) []Warning {
	var out []Warning
	for _, s := range sortedKeys(unresolved) {
		w := Warning{Subsystem: s, Message: unresolved[s].Error()}
		for _, f := range failures {
			var ge *graph.Error
			if f.Kind == graph.DependencyUnresolved && errors.As(f.Err, &ge) && ge.Subsystem == s {
				w.Workloads = append(w.Workloads, f.Workload)
			}
		}
		out = append(out, w)
	}
	return out
}
