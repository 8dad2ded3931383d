package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/force/internal/config"
	"github.com/yangwenmai/force/internal/engine"
	"github.com/yangwenmai/force/internal/store"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string

	configOnce sync.Once
	config     config.Config
	configErr  error

	// now is replaced in tests.
	now func() time.Time
}

func newCommandContext(configFlag, dbFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, dbFlag: dbFlag, now: time.Now}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if db := strings.TrimSpace(*c.dbFlag); db != "" {
			cfg.DBPath = db
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withEngine opens the database and runs fn against an engine over it.
func (c *commandContext) withEngine(ctx context.Context, stderr io.Writer, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	s, err := store.New(db)
	if err != nil {
		return err
	}

	// Routine engine logs are noise for a one-shot command.
	logCfg := cfg
	if logCfg.LogLevel == "info" {
		logCfg.LogLevel = "warn"
	}
	eng := engine.New(s, engine.Options{
		Now:           c.now,
		Location:      loc,
		BlockDuration: cfg.BlockDuration,
		CheckpointPct: cfg.CheckpointPct,
		Logger:        logCfg.NewLogger(stderr),
	})
	return fn(ctx, eng)
}

func newRootCommand() *cobra.Command {
	cmd, _ := newRootCommandWithContext()
	return cmd
}

func newRootCommandWithContext() (*cobra.Command, *commandContext) {
	var configFlag, dbFlag string
	ctx := newCommandContext(&configFlag, &dbFlag)

	rootCmd := &cobra.Command{
		Use:           "forcectl",
		Short:         "Inspect and maintain a force database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newArtifactsCommand(ctx))
	rootCmd.AddCommand(newBlocksCommand(ctx))
	rootCmd.AddCommand(newMetricsCommand(ctx))
	rootCmd.AddCommand(newFailuresCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))

	return rootCmd, ctx
}
