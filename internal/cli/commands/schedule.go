package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opensemanticworld/oswgen/internal/cli/ui"
	"github.com/opensemanticworld/oswgen/internal/schedule"
)

var (
	scheduleCron   string
	scheduleListen string
	scheduleCommit bool
	scheduleNow    bool
)

// NewScheduleCommand creates the schedule command
func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [name@version ...]",
		Short: "Rebuild packages on a cron schedule",
		Long: `Run the build for the given (or configured) packages on a cron schedule
until interrupted. Floating references (no @version) pick up new release
tags on every run.

With --listen a status server is started:
  GET /healthz  scheduler state
  GET /builds   recorded builds (?package=, ?limit=)`,
		Example: `  # Rebuild the configured packages every night
  oswgen schedule --cron "0 3 * * *" --commit

  # Poll for new releases every 15 minutes and expose status
  oswgen schedule --cron "@every 15m" --listen :8080 world.opensemanticworld.package.common`,
		ValidArgsFunction: completePackages,
		RunE:              runSchedule,
	}

	cmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron spec (default: schedule.cron)")
	cmd.Flags().StringVar(&scheduleListen, "listen", "", "Address of the status server (default: schedule.listen)")
	cmd.Flags().BoolVar(&scheduleCommit, "commit", false, "Commit the generated models and create release tags")
	cmd.Flags().BoolVar(&scheduleNow, "now", false, "Run once immediately before waiting for the schedule")

	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cron") {
		cfg.Schedule.Cron = scheduleCron
	}
	if cmd.Flags().Changed("listen") {
		cfg.Schedule.Listen = scheduleListen
	}

	refs := args
	if len(refs) == 0 {
		refs = cfg.Packages
	}
	if len(refs) == 0 {
		ui.Write(cmd.ErrOrStderr(), ui.NoPackages(color.NoColor))
		return errNoPackages
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	job := func(ctx context.Context) error {
		batch := a.builder.BuildPackages(ctx, refs, cfg.Build.Root, scheduleCommit)
		if failed := batch.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d of %d packages failed", len(failed), len(batch.Results))
		}
		return nil
	}

	sched, err := schedule.New(cfg.Schedule.Cron, job, logger)
	if err != nil {
		return err
	}

	if cfg.Schedule.Listen != "" {
		var builds schedule.BuildLister
		if a.history != nil {
			builds = a.history
		}
		srv := &http.Server{
			Addr:              cfg.Schedule.Listen,
			Handler:           schedule.NewRouter(sched, builds),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	if scheduleNow {
		if err := sched.RunNow(ctx); err != nil {
			logger.Warn("initial run failed", zap.Error(err))
		}
	}

	logger.Info("scheduling packages", zap.String("cron", cfg.Schedule.Cron), zap.Strings("packages", refs))
	sched.Start()

	<-ctx.Done()
	sched.Stop()
	return nil
}
