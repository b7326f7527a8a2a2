package naming

import "fmt"

// DefaultNamespace receives fleet-wide credentials in addition to every workload namespace.
const DefaultNamespace = "default"

// DataVolume is the pod volume name used for a workload's storage claim.
const DataVolume = "data"

func Namespace(workload string) string {
	return workload
}

func StorageClaim(workload string) string {
	return fmt.Sprintf("%s-data", workload)
}

func Runner(workload string) string {
	return workload
}

func Service(workload string) string {
	return workload
}

func Route(workload string) string {
	return workload
}

func AuthFilter(workload string) string {
	return fmt.Sprintf("%s-forward-auth", workload)
}

func DNSRecord(workload string) string {
	return fmt.Sprintf("%s-dns", workload)
}

// AuthSidecar is the container name of the authentication proxy sidecar.
func AuthSidecar(workload string) string {
	return fmt.Sprintf("%s-auth-proxy", workload)
}

// ExportObject is the object-storage key for a run's exported bundle.
func ExportObject(fleet, runID, file string) string {
	return fmt.Sprintf("%s/%s/%s", fleet, runID, file)
}
