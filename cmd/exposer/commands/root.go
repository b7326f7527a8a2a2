// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Root returns the root command for the exposer CLI.
func Root() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "exposer",
		Short:         "Expose workloads on Kubernetes behind shared gateway, DNS and TLS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			ctrllog.SetLogger(newLogger(verbose))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(Init())
	cmd.AddCommand(Render())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Version())

	return cmd
}

// newLogger returns a console logger on stderr. Verbose enables V(1).
func newLogger(verbose bool) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return zap.New(
		zap.Level(level),
		zap.ConsoleEncoder(),
		zap.WriteTo(os.Stderr),
	)
}

// runFlags binds the flags shared by render and apply.
type runFlags struct {
	configPath   string
	kubeconfig   string
	assumeReady  bool
	metricsFile  string
	exportBucket string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to fleet file (default: exposer.yaml)")
	cmd.Flags().StringVar(&f.kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")
	cmd.Flags().BoolVar(&f.assumeReady, "assume-ready", false, "Treat every subsystem as ready instead of probing the cluster")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this file in Prometheus textfile format")
	cmd.Flags().StringVar(&f.exportBucket, "export-bucket", "", "Upload exports and the rendered bundle to this S3 bucket")
}
