package readiness

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Status is the outcome of one probe.
type Status struct {
	Ready   bool
	Message string
}

// Probe checks a subsystem once.
type Probe interface {
	Check(ctx context.Context, s Subsystem) (Status, error)
}

// KubeProbe checks subsystems against a live cluster.
type KubeProbe struct {
	client client.Reader
}

// NewKubeProbe creates a probe reading through c.
func NewKubeProbe(c client.Reader) *KubeProbe {
	return &KubeProbe{client: c}
}

// Check reports ready when the controller has an available replica and the
// webhook Service, if any, has a ready endpoint.
func (p *KubeProbe) Check(ctx context.Context, s Subsystem) (Status, error) {
	dep := &appsv1.Deployment{}
	err := p.client.Get(ctx, client.ObjectKey{Namespace: s.Controller.Namespace, Name: s.Controller.Name}, dep)
	if apierrors.IsNotFound(err) {
		return Status{Message: fmt.Sprintf("controller %s not found", s.Controller)}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to get controller %s: %w", s.Controller, err)
	}
	if dep.Status.AvailableReplicas < 1 {
		return Status{Message: fmt.Sprintf("controller %s: 0/%d available", s.Controller, dep.Status.Replicas)}, nil
	}

	if s.Webhook == nil {
		return Status{Ready: true, Message: fmt.Sprintf("controller %s: %d/%d available",
			s.Controller, dep.Status.AvailableReplicas, dep.Status.Replicas)}, nil
	}

	ready, err := p.hasReadyEndpoints(ctx, *s.Webhook)
	if err != nil {
		return Status{}, err
	}
	if !ready {
		return Status{Message: fmt.Sprintf("webhook %s has no ready endpoints", s.Webhook)}, nil
	}
	return Status{Ready: true, Message: fmt.Sprintf("webhook %s has ready endpoints", s.Webhook)}, nil
}

// hasReadyEndpoints checks if a service has at least one ready endpoint.
func (p *KubeProbe) hasReadyEndpoints(ctx context.Context, svc ObjectRef) (bool, error) {
	slices := &discoveryv1.EndpointSliceList{}
	err := p.client.List(ctx, slices,
		client.InNamespace(svc.Namespace),
		client.MatchingLabels{discoveryv1.LabelServiceName: svc.Name},
	)
	if err != nil {
		return false, fmt.Errorf("failed to list endpoints of %s: %w", svc, err)
	}

	for _, slice := range slices.Items {
		for _, ep := range slice.Endpoints {
			// A nil condition means unknown, which consumers treat as ready.
			if ep.Conditions.Ready == nil || *ep.Conditions.Ready {
				if len(ep.Addresses) > 0 {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// StaticProbe reports a fixed readiness per subsystem. It backs offline
// rendering, where no cluster is reachable.
type StaticProbe struct {
	Ready   map[string]bool
	Default bool
}

// AllReady returns a probe that reports every subsystem ready.
func AllReady() *StaticProbe {
	return &StaticProbe{Default: true}
}

// Check implements Probe.
func (p *StaticProbe) Check(_ context.Context, s Subsystem) (Status, error) {
	ready, ok := p.Ready[s.Name]
	if !ok {
		ready = p.Default
	}
	if ready {
		return Status{Ready: true, Message: "assumed ready"}, nil
	}
	return Status{Message: "assumed not ready"}, nil
}
