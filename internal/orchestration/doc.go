// Package orchestration is the fleet entry point.
//
// A run enumerates the fleet's workload descriptors, pre-resolves one
// namespace per workload, distributes fleet-wide credentials into those
// namespaces, and composes each workload through the exposure context.
// Failures are collected per workload; one workload failing never prevents
// the others from being emitted.
//
// # Usage
//
//	root := orchestration.NewRoot(exposureCtx, deps)
//	result, err := root.Run(ctx, orchestration.Fleet{Name: "prod", Workloads: descriptors})
//	for _, obj := range result.Ordered() { ... }
package orchestration
