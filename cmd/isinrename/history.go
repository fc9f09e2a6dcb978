package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"isinrename/internal/audit"
	"isinrename/internal/output"
)

const historyTimeFormat = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded rename and undo runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := ctx.output(cmd)

			runs, err := audit.NewAuditReader(cfg.Audit.LogDirectory).ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				out.Info("No runs recorded.")
				return nil
			}

			out.Table(historyHeaders, historyRows(runs), historyAligns)
			return nil
		},
	}
}

var historyHeaders = []string{"Run ID", "Type", "Status", "Started", "Renamed", "Exists", "Not found", "Errors"}

var historyAligns = []output.Alignment{
	output.AlignLeft, output.AlignLeft, output.AlignLeft, output.AlignLeft,
	output.AlignRight, output.AlignRight, output.AlignRight, output.AlignRight,
}

func historyRows(runs []audit.RunInfo) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			string(run.RunID),
			string(run.RunType),
			string(run.Status),
			run.StartTime.Local().Format(historyTimeFormat),
			strconv.Itoa(run.Summary.Renamed),
			strconv.Itoa(run.Summary.AlreadyExists),
			strconv.Itoa(run.Summary.NotFound),
			strconv.Itoa(run.Summary.Errors),
		})
	}
	return rows
}
