package main

import (
	"github.com/spf13/cobra"

	"isinrename/internal/config"
	"isinrename/internal/metadata"
	"isinrename/internal/orchestrator"
	"isinrename/internal/output"
)

func runRename(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := ctx.output(cmd)

	if ctx.dryRun {
		return renamePass(cmd, ctx, cfg, out)
	}
	return withLock(cfg, func() error {
		return renamePass(cmd, ctx, cfg, out)
	})
}

func renamePass(cmd *cobra.Command, ctx *commandContext, cfg *config.Configuration, out *output.Output) error {
	writer, err := ctx.openAudit(cfg)
	if err != nil {
		return err
	}
	if writer != nil {
		defer writer.Close()
	}

	observer := orchestrator.ConsoleObserver(out)
	if out.IsTTY() && !out.IsVerbose() {
		if total := countRows(cfg); total > 0 {
			out.StartProgress(total)
			observer = withProgress(out, observer)
		}
	}

	renamer := orchestrator.NewRenamer(cfg, orchestrator.Options{
		DryRun:   ctx.dryRun,
		Observer: observer,
	})
	result, runID, err := orchestrator.RunAudited(cmd.Context(), renamer, writer, version, machineID())
	out.EndProgress()
	if err != nil {
		return err
	}

	stats, err := orchestrator.CollectDirectoryStats(cfg.TargetDirectory, cfg.ScanOptions())
	if err != nil {
		out.Warn("directory statistics unavailable: %v", err)
		stats = nil
	}
	orchestrator.PrintSummary(out, result, stats)
	if runID != "" {
		out.Verbose("Audit run: %s", runID)
	}
	return nil
}

// countRows returns the number of data rows, or zero when the table
// cannot be read.
func countRows(cfg *config.Configuration) int {
	rows, rowErrs, err := metadata.ReadAll(cfg.MetadataFile, cfg.MetadataOptions())
	if err != nil {
		return 0
	}
	return len(rows) + len(rowErrs)
}

// withProgress advances the progress indicator on every row outcome.
// Data rows start on the second line of the table.
func withProgress(out *output.Output, next orchestrator.Observer) orchestrator.Observer {
	return func(ev orchestrator.Event) {
		next(ev)
		if ev.Line > 1 {
			out.UpdateProgress(ev.Line-1, "")
		}
	}
}
