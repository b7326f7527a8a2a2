// Package emit hands a fleet result to its sinks: a YAML renderer and a
// server-side-apply applier. Both consume Result.Ordered, so shared
// namespaces and credential requests always precede workload objects.
package emit
