package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"isinrename/internal/config"
	"isinrename/internal/orchestrator"
	"isinrename/internal/output"
	"isinrename/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rename new PDFs as they arrive in the directory",
		Long: "Watch runs one rename pass at start and another whenever new PDFs\n" +
			"have settled in the directory. Stop it with Ctrl-C.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.CheckPrerequisites(); err != nil {
				return err
			}
			out := ctx.output(cmd)

			if ctx.dryRun {
				return watchDirectory(cmd.Context(), ctx, cfg, out)
			}
			return withLock(cfg, func() error {
				return watchDirectory(cmd.Context(), ctx, cfg, out)
			})
		},
	}
}

func watchDirectory(runCtx context.Context, ctx *commandContext, cfg *config.Configuration, out *output.Output) error {
	writer, err := ctx.openAudit(cfg)
	if err != nil {
		return err
	}
	if writer != nil {
		defer writer.Close()
	}

	observer := orchestrator.ConsoleObserver(out)
	pass := func(passCtx context.Context) (watcher.PassStats, error) {
		renamer := orchestrator.NewRenamer(cfg, orchestrator.Options{DryRun: ctx.dryRun, Observer: observer})
		result, _, err := orchestrator.RunAudited(passCtx, renamer, writer, version, machineID())
		if err != nil {
			return watcher.PassStats{}, err
		}
		out.Verbose("pass complete: %d renamed, %d already exist, %d not found",
			result.Renamed, result.AlreadyExists, result.NotFound)
		return watcher.PassStats{
			Renamed:       result.Renamed,
			AlreadyExists: result.AlreadyExists,
			NotFound:      result.NotFound,
			Errors:        result.Errors,
		}, nil
	}

	watchCfg := cfg.WatcherConfig()
	watchCfg.OnError = func(err error) {
		out.Warn("watch: %v", err)
	}

	out.Info("Watching %s (Ctrl-C to stop)", cfg.TargetDirectory)
	summary, err := watcher.New(watchCfg, pass).Run(runCtx, cfg.TargetDirectory)
	if summary != nil {
		printWatchSummary(out, summary)
	}
	return err
}

func printWatchSummary(out *output.Output, summary *watcher.Summary) {
	out.Info("")
	out.Info("Watch session ended after %s", summary.Duration.Round(time.Second))
	counts := []output.CountRow{
		{Label: "Passes", Count: summary.Passes},
		{Label: "Renamed", Count: summary.Renamed},
		{Label: "Already exists", Count: summary.AlreadyExists},
		{Label: "Ignored events", Count: summary.Ignored},
	}
	if summary.Errors > 0 {
		counts = append(counts, output.CountRow{Label: "Errors", Count: summary.Errors})
	}
	out.CountTable("Session", counts)
}
