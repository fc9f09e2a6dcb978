package main

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"isinrename/internal/audit"
	"isinrename/internal/config"
	"isinrename/internal/output"
	"isinrename/internal/runlock"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type commandContext struct {
	configFlag   string
	metadataFlag string
	dirFlag      string
	dryRun       bool
	verbose      bool
	noAudit      bool

	configOnce sync.Once
	config     *config.Configuration
	configPath string
	configErr  error
}

func (c *commandContext) overrides() config.Overrides {
	return config.Overrides{
		MetadataFile:    c.metadataFlag,
		TargetDirectory: c.dirFlag,
		NoAudit:         c.noAudit,
	}
}

func (c *commandContext) ensureConfig() (*config.Configuration, error) {
	c.configOnce.Do(func() {
		c.config, c.configPath, c.configErr = config.LoadWithOverrides(strings.TrimSpace(c.configFlag), c.overrides())
	})
	return c.config, c.configErr
}

func (c *commandContext) output(cmd *cobra.Command) *output.Output {
	cfg := output.DefaultConfig()
	cfg.Verbose = c.verbose
	cfg.Writer = cmd.OutOrStdout()
	cfg.ErrWriter = cmd.ErrOrStderr()
	cfg.IsTTY = cfg.IsTTY && cfg.Writer == io.Writer(os.Stdout)
	return output.New(cfg)
}

// openAudit returns the audit writer for a mutating run, or nil when
// auditing is disabled or nothing will change.
func (c *commandContext) openAudit(cfg *config.Configuration) (*audit.AuditWriter, error) {
	if cfg.Audit.Disabled || c.dryRun {
		return nil, nil
	}
	return audit.NewAuditWriter(cfg.Audit)
}

// withLock runs fn while holding the run lock.
func withLock(cfg *config.Configuration, fn func() error) error {
	lock, err := runlock.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

func machineID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
