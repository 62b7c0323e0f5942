package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamhub/teamhub/internal/app"
	"github.com/teamhub/teamhub/internal/config"
	"github.com/teamhub/teamhub/pkg/types"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configFile string
	dataDir    string
	storeType  string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "teamhub",
		Short: "Historize the NHL team catalog",
		Long: `teamhub captures daily snapshots of the team catalog, computes the
change-set against the previous snapshot, assigns surrogate keys and keeps
an append-only hub of every team ever observed.

Each stage takes the run date and is safe to re-run. Schedule them in order:
snapshot, diff, resolve, merge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Base directory for local data files")
	pf.StringVar(&flags.storeType, "store", "", "Store backend: sqlite, postgres, object")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: json, console")

	root.AddCommand(
		newStageCmd(flags, "snapshot", "Fetch the catalog and store the snapshot of the run date"),
		newStageCmd(flags, "diff", "Write the change-set against the previous snapshot to staging"),
		newStageCmd(flags, "resolve", "Assign surrogate keys and append the change-set to the operational log"),
		newStageCmd(flags, "merge", "Add newly seen surrogate keys to the hub"),
		newRunCmd(flags),
		newLedgerCmd(flags),
		newHubCmd(flags),
		newTablesCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flags.configFile != "" {
		cfg, err = config.LoadFromFile(flags.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags have the highest priority
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.storeType != "" {
		cfg.Store.Type = config.StoreType(flags.storeType)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}

	return cfg, nil
}

// withApp builds and starts an App, runs fn and stops the App.
func withApp(ctx context.Context, flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		a.Stop(context.Background())
		return err
	}

	runErr := fn(ctx, a)
	if err := a.Stop(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// addDateFlag registers --date, defaulting to today in UTC.
func addDateFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "date", time.Now().UTC().Format("2006-01-02"), "Run date (YYYY-MM-DD)")
}

func parseDate(s string) (types.RunDate, error) {
	return types.ParseRunDate(s)
}
