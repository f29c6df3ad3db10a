package commands

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/joeydtaylor/steeze-services/pkg/dispatch"
	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/relay"
	"github.com/joeydtaylor/steeze-services/pkg/serverfx"
	"github.com/joeydtaylor/steeze-services/pkg/service"
	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table built from the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := loadStore()
			if err != nil {
				return err
			}
			table, err := dispatch.BuildTable(cmd.Context(), store)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHODS\tPATH\tNAME\tREQUIREMENTS")
			for _, e := range table {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					strings.Join(e.Spec.Methods, ","), e.Spec.Path, e.Spec.Name, requirements(e.Spec))
			}
			return tw.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the manifest and that every definition it names exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := loadStore()
			if err != nil {
				return err
			}
			if _, err := dispatch.BuildTable(cmd.Context(), store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d endpoints)\n", options().ManifestPath(), len(cfg.Endpoints))
			return nil
		},
	}
}

// loadStore resolves definitions without connecting the relay.
func loadStore() (manifest.Config, *endpoint.ManifestStore, error) {
	cfg, err := manifest.Load(options().ManifestPath())
	if err != nil {
		return manifest.Config{}, nil, err
	}
	reg, err := serverfx.NewRegistry(relay.Noop{})
	if err != nil {
		return manifest.Config{}, nil, err
	}
	store, err := endpoint.NewManifestStore(cfg, reg)
	if err != nil {
		return manifest.Config{}, nil, err
	}
	return cfg, store, nil
}

func requirements(spec service.RouteSpec) string {
	keys := make([]string, 0, len(spec.Requirements))
	for k, v := range spec.Requirements {
		keys = append(keys, k+"="+v)
	}
	slices.Sort(keys)
	return strings.Join(keys, " ")
}
