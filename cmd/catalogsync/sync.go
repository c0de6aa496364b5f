package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/catalogsync/internal/app"
	"github.com/MrSnakeDoc/catalogsync/internal/config"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/report"
)

type syncFlags struct {
	envFile     string
	limit       int
	skipArchive bool
	seed        string
	store       string
}

func newSyncCmd() *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Long: "Fetch the plugin registry, create or update one catalog record per plugin " +
			"and archive records whose plugin left the registry.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "only process the first N registry entries (0 = all)")
	cmd.Flags().BoolVar(&f.skipArchive, "skip-archive", false, "report orphan records without archiving them")
	cmd.Flags().StringVar(&f.seed, "seed", "", "YAML file of extra plugins to append")
	cmd.Flags().StringVar(&f.store, "store", "", "catalog store: notion, redis or memory")
	return cmd
}

func runSync(cmd *cobra.Command, f syncFlags) error {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}

	// Flags win over the environment when set.
	flags := cmd.Flags()
	if flags.Changed("limit") {
		cfg.Limit = f.limit
	}
	if flags.Changed("skip-archive") {
		cfg.SkipArchive = f.skipArchive
	}
	if flags.Changed("seed") {
		cfg.SeedFile = f.seed
	}
	if flags.Changed("store") {
		cfg.Store = f.store
	}

	log := logger.NewWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLog,
		File:   cfg.LogFile,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, report.New(log))
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync aborted after %d created, %d updated, %d archived: %w",
			sum.Created, sum.Updated, sum.Archived, err)
	}
	return nil
}
