// Package naming provides consistent names for the objects of a workload.
//
// Objects are named after the workload they belong to. Objects that share a
// kind within one namespace carry a role suffix ({workload}-data,
// {workload}-forward-auth). Names are plain functions of the workload name so
// re-emitting a workload always targets the same objects.
package naming
