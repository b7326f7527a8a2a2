// Package config loads the fleet file (exposer.yaml): the shared
// infrastructure references, the subsystem and credential declarations, and
// the workload descriptors of one fleet.
package config
