package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "isinrename",
		Short: "Rename ISIN-named PDFs after their company",
		Long: "isinrename reads the metadata table and renames every PDF named by ISIN\n" +
			"to the sanitized company name, keeping any language suffix. Existing\n" +
			"files are never overwritten.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(cmd, ctx)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.metadataFlag, "metadata", "", "Metadata table (overrides metadata_file)")
	flags.StringVar(&ctx.dirFlag, "dir", "", "PDF directory (overrides target_directory)")
	flags.BoolVar(&ctx.dryRun, "dry-run", false, "Show what would change without touching any file")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Print every row outcome")
	flags.BoolVar(&ctx.noAudit, "no-audit", false, "Do not record the run in the audit log")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newUndoCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
