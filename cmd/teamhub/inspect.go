package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamhub/teamhub/internal/app"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/store"
	"github.com/teamhub/teamhub/pkg/types"
)

func newLedgerCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "List ledger entries as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				entries, err := a.Pipeline().Ledger().Entries(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, e := range entries {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newHubCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hub",
		Short: "Dump hub rows as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				rows, err := store.ReadRows[types.HubRecord](ctx, a.Store(), a.Pipeline().HubTable())
				if perrors.IsNotFound(err) {
					return nil
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range rows {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newTablesCmd(flags *globalFlags) *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List warehouse tables with their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layers := store.Layers
			if layer != "" {
				layers = []store.Layer{store.Layer(layer)}
			}
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				for _, l := range layers {
					refs, err := a.Store().Tables(ctx, l)
					if err != nil {
						return err
					}
					for _, ref := range refs {
						n, err := a.Store().Count(ctx, ref)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", ref, n)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Only list tables of this layer")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "teamhub version %s (commit: %s)\n", version, commit)
		},
	}
}
