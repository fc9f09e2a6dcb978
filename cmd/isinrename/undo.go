package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"isinrename/internal/audit"
	"isinrename/internal/config"
	"isinrename/internal/output"
)

func newUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [run-id]",
		Short: "Restore the ISIN names of a recorded rename run",
		Long: "Undo reverses the renames of the latest rename run, or of the run\n" +
			"given by ID. Each file is verified against its recorded identity and\n" +
			"an occupied original name is never overwritten. With --dry-run the\n" +
			"renames that would be reversed are listed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Audit.Disabled {
				return errors.New("the audit log is disabled; there is nothing to undo")
			}
			out := ctx.output(cmd)
			reader := audit.NewAuditReader(cfg.Audit.LogDirectory)

			var runID audit.RunID
			if len(args) == 1 {
				runID = audit.RunID(args[0])
			}

			if ctx.dryRun {
				return previewUndo(out, audit.NewUndoEngine(reader, nil, version, machineID()), runID)
			}
			return withLock(cfg, func() error {
				return undoRun(out, cfg, reader, runID)
			})
		},
	}
}

func previewUndo(out *output.Output, engine *audit.UndoEngine, runID audit.RunID) error {
	if runID == "" {
		run, err := engine.LatestUndoable()
		if err != nil {
			return err
		}
		runID = run.RunID
	}

	preview, err := engine.PreviewUndo(runID)
	if err != nil {
		return err
	}

	out.Info("Undo preview for run %s", preview.TargetRunID)
	for _, ev := range preview.EventsToUndo {
		if ev.WillRestore {
			out.Info("  restore %s -> %s", ev.DestPath, ev.SourcePath)
		} else {
			out.Verbose("  no action for %s event", ev.EventType)
		}
	}
	out.CountTable("Undo preview", []output.CountRow{
		{Label: "Renames to reverse", Count: preview.TotalRenames},
		{Label: "No action needed", Count: preview.TotalNoOps},
	})
	return nil
}

func undoRun(out *output.Output, cfg *config.Configuration, reader *audit.AuditReader, runID audit.RunID) error {
	writer, err := audit.NewAuditWriter(cfg.Audit)
	if err != nil {
		return err
	}
	defer writer.Close()

	engine := audit.NewUndoEngine(reader, writer, version, machineID())

	var result *audit.UndoResult
	if runID == "" {
		result, err = engine.UndoLatest()
	} else {
		result, err = engine.UndoRun(runID)
	}
	if err != nil {
		return err
	}

	for _, failure := range result.FailureDetails {
		out.Warn("could not restore %s -> %s: %s (%s)", failure.DestPath, failure.SourcePath, failure.Message, failure.Reason)
	}

	out.Info("Undid run %s (undo run %s)", result.TargetRunID, result.UndoRunID)
	out.CountTable("Undo", []output.CountRow{
		{Label: "Restored", Count: result.Restored},
		{Label: "Skipped", Count: result.Skipped},
		{Label: "Failed", Count: result.Failed},
	})
	if result.Restored == 0 && result.Failed > 0 {
		return fmt.Errorf("undo of run %s restored no files (%d failed)", result.TargetRunID, result.Failed)
	}
	return nil
}
