package commands

import (
	"github.com/joeydtaylor/steeze-services/pkg/serverfx"
	"github.com/spf13/cobra"
)

var manifestPath string

func Execute() error { return newRoot().Execute() }

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "servicesd",
		Short:        "Serve service definitions over HTTP",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "manifest path (default $SERVICES_MANIFEST or services.toml)")
	root.AddCommand(serveCmd(), routesCmd(), validateCmd())
	return root
}

// options applies the --manifest flag, which wins over the environment.
func options() serverfx.Options {
	opts := serverfx.DefaultOptions()
	if manifestPath != "" {
		opts.ManifestEnv = ""
		opts.DefaultManifest = manifestPath
	}
	return opts
}
