package emit

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/orchestration"
	"github.com/imamik/exposer/internal/platform/kube"
)

// ObjectApplier applies one object. kube.Client satisfies it.
type ObjectApplier interface {
	ApplyObject(ctx context.Context, obj *unstructured.Unstructured, fieldManager string) error
}

// Applier applies a fleet result in emission order.
type Applier struct {
	client       ObjectApplier
	fieldManager string
	metrics      *metrics.Recorder
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithFieldManager overrides the server-side apply field manager.
func WithFieldManager(name string) ApplierOption {
	return func(a *Applier) {
		a.fieldManager = name
	}
}

// WithApplyMetrics records apply outcomes.
func WithApplyMetrics(m *metrics.Recorder) ApplierOption {
	return func(a *Applier) {
		a.metrics = m
	}
}

// NewApplier creates an applier over c.
func NewApplier(c ObjectApplier, opts ...ApplierOption) *Applier {
	a := &Applier{client: c, fieldManager: kube.FieldManager}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply applies shared objects, then each workload graph. A shared object
// that fails aborts the apply, since every graph depends on it. A workload
// whose object is rejected is recorded on res and the remaining workloads
// continue. The count of applied objects is returned.
func (a *Applier) Apply(ctx context.Context, res *orchestration.Result) (int, error) {
	logger := log.FromContext(ctx).WithValues("runID", res.RunID)
	applied := make(map[graph.ObjectKey]bool)

	for _, o := range res.Shared {
		if applied[o.Key] {
			continue
		}
		if err := a.apply(ctx, o); err != nil {
			return len(applied), fmt.Errorf("failed to apply shared object %s: %w", o.Key, err)
		}
		applied[o.Key] = true
	}

	var rejected []rejection
	for _, g := range res.Graphs {
		for _, o := range g.Objects() {
			if applied[o.Key] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return len(applied), err
			}
			if err := a.apply(ctx, o); err != nil {
				if kube.IsAdmissionDenied(err) {
					err = graph.Rejected(g.Workload(), fmt.Errorf("%s: %w", o.Key, err))
				} else {
					err = fmt.Errorf("failed to apply %s: %w", o.Key, err)
				}
				logger.Info("workload apply failed", "workload", g.Workload(), "object", o.Key.String(), "error", err)
				rejected = append(rejected, rejection{g.Workload(), err})
				break
			}
			applied[o.Key] = true
		}
	}

	for _, r := range rejected {
		res.Reject(r.workload, r.err)
	}
	return len(applied), nil
}

type rejection struct {
	workload string
	err      error
}

func (a *Applier) apply(ctx context.Context, o *graph.Object) error {
	err := a.client.ApplyObject(ctx, o.Desired.DeepCopy(), a.fieldManager)
	if err != nil {
		a.metrics.RecordApply(metrics.ResultFailure)
		return err
	}
	a.metrics.RecordApply(metrics.ResultSuccess)
	log.FromContext(ctx).V(1).Info("applied", "object", o.Key.String())
	return nil
}
