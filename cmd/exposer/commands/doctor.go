package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/exposer/cmd/exposer/handlers"
)

// Doctor returns the command for diagnosing the fleet and its cluster.
func Doctor() *cobra.Command {
	var opts handlers.DoctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose fleet configuration, subsystems and DNS",
		Long: `Check the fleet file, the readiness of every declared subsystem, and
existing DNS records that would clash with workload hostnames.

Cluster checks are skipped when no kubeconfig is available. DNS checks need
CF_API_TOKEN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to fleet file (default: exposer.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")

	return cmd
}
