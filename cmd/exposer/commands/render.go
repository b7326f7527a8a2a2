package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/exposer/cmd/exposer/handlers"
)

// Render returns the command for composing manifests without applying them.
//
// Optional flags:
//
//	--config, -c: Path to fleet file (default: auto-detect exposer.yaml)
//	--output, -o: Directory to write one file per workload (default: stdout)
//	--assume-ready: Skip cluster readiness probes
func Render() *cobra.Command {
	var flags runFlags
	var outputDir string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render workload manifests",
		Long: `Compose every workload in the fleet and write the resulting manifests.

Shared objects (namespaces and credential requests) come first, followed by
each workload's objects in dependency order.

Examples:
  # Render to stdout, probing readiness on the current cluster
  exposer render

  # Render offline into a directory
  exposer render --assume-ready -o manifests/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Render(cmd.Context(), handlers.RenderOptions{
				RunOptions: flags.options(),
				OutputDir:  outputDir,
			})
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write manifests to (default: stdout)")

	return cmd
}

func (f *runFlags) options() handlers.RunOptions {
	return handlers.RunOptions{
		ConfigPath:   f.configPath,
		Kubeconfig:   f.kubeconfig,
		AssumeReady:  f.assumeReady,
		MetricsFile:  f.metricsFile,
		ExportBucket: f.exportBucket,
	}
}
