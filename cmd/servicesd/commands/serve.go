package commands

import (
	"github.com/joeydtaylor/steeze-services/pkg/serverfx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(serverfx.Module(options()))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
