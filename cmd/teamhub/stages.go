package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teamhub/teamhub/internal/app"
	"github.com/teamhub/teamhub/internal/observability"
)

func newStageCmd(flags *globalFlags, stage, short string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   stage,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				fn, err := a.Pipeline().Stage(stage)
				if err != nil {
					return err
				}
				stats, err := fn(ctx, d)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all four stages in order, retrying failed stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				results, err := a.Pipeline().Run(ctx, d)
				for _, stats := range results {
					printStats(cmd.OutOrStdout(), stats)
				}
				return err
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func printStats(w io.Writer, s observability.StageStats) {
	status := "ok"
	if s.Err != nil {
		status = "failed"
	}
	fmt.Fprintf(w, "%-8s %s run_date=%s rows_in=%d rows_out=%d", s.Stage, status, s.RunDate, s.RowsIn, s.RowsOut)
	if s.Table != "" {
		fmt.Fprintf(w, " table=%s count_before=%d count_after=%d", s.Table, s.TableRowsBefore, s.TableRowsAfter)
	}
	if s.Attempts > 1 {
		fmt.Fprintf(w, " attempts=%d", s.Attempts)
	}
	fmt.Fprintf(w, " duration=%s\n", s.Duration)
}
