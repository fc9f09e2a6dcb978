package main

import (
	"github.com/spf13/cobra"

	"isinrename/internal/orchestrator"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what a rename pass would do and the directory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := ctx.output(cmd)

			status, err := orchestrator.Status(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out.Info("Metadata:  %s", cfg.MetadataFile)
			out.Info("Directory: %s", cfg.TargetDirectory)
			for _, op := range status.Plan.Operations {
				if op.Kind == orchestrator.EventRenamed {
					out.Verbose("would rename %s -> %s (%s)", op.Source, op.Destination, op.Shape)
				}
			}
			orchestrator.PrintSummary(out, status.Plan, status.Stats)

			if len(status.Unclaimed) > 0 {
				out.Info("")
				out.Info("ISIN-named files without a metadata row (%d):", len(status.Unclaimed))
				for _, name := range status.Unclaimed {
					out.Info("  %s", name)
				}
			}
			return nil
		},
	}
}
