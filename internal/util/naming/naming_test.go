package naming

import "testing"

func TestNamingFunctions(t *testing.T) {
	workload := "blog"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "Namespace", got: Namespace(workload), expected: "blog"},
		{name: "StorageClaim", got: StorageClaim(workload), expected: "blog-data"},
		{name: "Runner", got: Runner(workload), expected: "blog"},
		{name: "Service", got: Service(workload), expected: "blog"},
		{name: "Route", got: Route(workload), expected: "blog"},
		{name: "AuthFilter", got: AuthFilter(workload), expected: "blog-forward-auth"},
		{name: "DNSRecord", got: DNSRecord(workload), expected: "blog-dns"},
		{name: "AuthSidecar", got: AuthSidecar(workload), expected: "blog-auth-proxy"},
		{name: "ExportObject", got: ExportObject("homelab", "run-1", "exports.json"), expected: "homelab/run-1/exports.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}
