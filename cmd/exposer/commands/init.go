package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/exposer/cmd/exposer/handlers"
)

// Init returns the command for creating a starter fleet file.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fleet file interactively",
		Long: `Ask a few questions and write a starter fleet file.

With HCLOUD_TOKEN set, the wizard offers the project's load balancers for
gateway hostname discovery.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "exposer.yaml", "Output file path")

	return cmd
}
