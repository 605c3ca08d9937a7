package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stacker/internal/app"
	"stacker/internal/config"
	"stacker/internal/logger"
	"stacker/internal/plan"

	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:          "stacker",
	Short:        "Scheduled recurring crypto purchases",
	Long:         "Buys crypto on a schedule, sizes each purchase from market data and optionally withdraws to a wallet.",
	SilenceUsage: true,
	RunE:         runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run every due plan once and exit",
	RunE:  runOnce,
}

var validateCmd = &cobra.Command{
	Use:   "validate [plans.yaml]",
	Short: "Validate a plan file without running it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	def := os.Getenv("STACKER_CONFIG")
	if def == "" {
		def = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", def, "Config file (env STACKER_CONFIG)")
	rootCmd.AddCommand(onceCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, closeLog, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeLog()
	if err := a.Run(ctx); err != nil {
		logger.Errorf("run failed: %v", err)
		return err
	}
	logger.Infof("stacker stopped")
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, closeLog, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeLog()
	started := a.RunOnce(ctx)
	logger.Infof("ran %d due plan(s): %s", len(started), strings.Join(started, ", "))
	return nil
}

func runValidate(_ *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Plans.Path
	}
	plans, err := plan.LoadFile(path)
	if err != nil {
		return err
	}
	for _, p := range plans {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-24s %-8s %-10s %s %s (%s)\n", p.ID, p.Exchange, p.Pair(), p.BaseAmount.String(), p.Fiat, state)
	}
	fmt.Printf("%d plan(s) OK\n", len(plans))
	return nil
}

func newApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	closeLog := func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ config loaded (env=%s, plans=%s)", cfg.App.Env, cfg.Plans.Path)

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("init app: %w", err)
	}
	return a, closeLog, nil
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
