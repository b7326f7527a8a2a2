package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/exposer/cmd/exposer/handlers"
)

// Apply returns the command for applying the fleet to the cluster.
//
// Environment variables:
//
//	CF_API_TOKEN: Cloudflare token, used to discover the zone ID (optional)
//	HCLOUD_TOKEN: Hetzner Cloud token, used to discover the gateway hostname (optional)
func Apply() *cobra.Command {
	var flags runFlags
	var bundlePath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply workloads to the cluster",
		Long: `Compose every workload in the fleet and apply it with server-side apply.

A workload whose objects are rejected by the cluster is reported as failed;
the remaining workloads are still applied.

Examples:
  # Apply using exposer.yaml in the current directory
  exposer apply

  # Apply a bundle produced by 'exposer render'
  exposer apply -f bundle.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bundlePath != "" {
				return handlers.ApplyBundle(cmd.Context(), bundlePath, flags.kubeconfig)
			}
			return handlers.Apply(cmd.Context(), flags.options())
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&bundlePath, "filename", "f", "", "Apply a rendered bundle instead of composing the fleet")

	return cmd
}
