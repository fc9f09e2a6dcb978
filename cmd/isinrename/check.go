package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"isinrename/internal/config"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and the dataset paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := ctx.output(cmd)

			source := ctx.configPath
			if source == "" {
				source = "built-in defaults"
			}
			out.Info("Configuration: %s", source)
			out.Info("Metadata:      %s (%s, delimiter %q)", cfg.MetadataFile, cfg.Encoding, cfg.Delimiter)
			out.Info("Directory:     %s", cfg.TargetDirectory)
			out.Verbose("Lock file:     %s", cfg.LockFile)
			if cfg.Audit.Disabled {
				out.Verbose("Audit log:     disabled")
			} else {
				out.Verbose("Audit log:     %s", cfg.Audit.LogDirectory)
			}

			result := config.ValidateConfig(cfg)
			for _, issue := range result.Errors {
				out.Error("%s: %s", issue.Field, issue.Message)
			}
			for _, issue := range result.Warnings {
				out.Warn("%s: %s", issue.Field, issue.Message)
			}
			if !result.Valid {
				return fmt.Errorf("configuration check failed with %d error(s)", len(result.Errors))
			}
			out.Success("configuration OK")
			return nil
		},
	}
}
