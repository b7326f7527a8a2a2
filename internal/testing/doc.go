// Package testing provides builders and helpers shared by unit tests.
//
//   - FleetBuilder: fluent builder for fleet files
//   - DescriptorBuilder: fluent builder for workload descriptors
//
// Usage:
//
//	path := testing.NewFleetBuilder().
//	    WithWorkload(testing.NewDescriptor("demo").Build()).
//	    WriteFile(t, t.TempDir())
package testing
