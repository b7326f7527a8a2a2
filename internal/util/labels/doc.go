// Package labels provides consistent labeling for emitted Kubernetes objects.
//
// Labels follow the app.kubernetes.io recommended keys and a builder pattern
// for constructing label sets with workload identity, fleet and manager
// identification. Selector labels are a strict subset of the common labels,
// so a Deployment's selector always matches its Service's selector.
package labels
