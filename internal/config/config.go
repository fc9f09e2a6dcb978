// Package config handles configuration loading and validation for isinrename.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"isinrename/internal/audit"
	"isinrename/internal/metadata"
	"isinrename/internal/scanner"
	"isinrename/internal/watcher"
)

// DefaultConfigFile is looked up in the working directory when no
// configuration path is given.
const DefaultConfigFile = "isinrename.toml"

// Dataset defaults.
const (
	DefaultMetadataFile    = "2025-09-23_data_EN.csv"
	DefaultTargetDirectory = "2025-09-23_EN"
	DefaultLockFile        = ".isinrename/run.lock"
	DefaultDebounceSeconds = 2
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound        ConfigErrorType = "FILE_NOT_FOUND"
	InvalidTOML         ConfigErrorType = "INVALID_TOML"
	ValidationError     ConfigErrorType = "VALIDATION_ERROR"
	PrerequisiteMissing ConfigErrorType = "PREREQUISITE_MISSING"
)

// ConfigError represents an error that occurred during configuration
// loading or the prerequisite check.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidTOML:
		return fmt.Sprintf("invalid TOML in configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	case PrerequisiteMissing:
		return fmt.Sprintf("%s: %s", e.Message, e.Path)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsPrerequisiteMissing reports whether err is a missing metadata file or
// target directory.
func IsPrerequisiteMissing(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Type == PrerequisiteMissing
}

// WatchSettings configures watch mode.
type WatchSettings struct {
	DebounceSeconds int      `toml:"debounce_seconds"`
	IgnorePatterns  []string `toml:"ignore_patterns"`
}

// WatcherConfig returns the watcher settings for watch mode.
func (c *Configuration) WatcherConfig() watcher.Config {
	return watcher.Config{
		Debounce:       time.Duration(c.Watch.DebounceSeconds) * time.Second,
		IgnorePatterns: c.Watch.IgnorePatterns,
		InitialPass:    true,
	}
}

// Configuration holds all settings for isinrename.
type Configuration struct {
	MetadataFile    string            `toml:"metadata_file"`
	TargetDirectory string            `toml:"target_directory"`
	Encoding        string            `toml:"encoding"`
	Delimiter       string            `toml:"delimiter"`
	ISINColumn      string            `toml:"isin_column"`
	NameColumn      string            `toml:"name_column"`
	SymlinkPolicy   string            `toml:"symlink_policy"`
	LockFile        string            `toml:"lock_file"`
	Audit           audit.AuditConfig `toml:"audit"`
	Watch           WatchSettings     `toml:"watch"`
}

// Default returns the configuration used when no file is present.
func Default() Configuration {
	return Configuration{
		MetadataFile:    DefaultMetadataFile,
		TargetDirectory: DefaultTargetDirectory,
		Encoding:        metadata.EncodingISO88591,
		Delimiter:       ";",
		ISINColumn:      metadata.DefaultISINColumn,
		NameColumn:      metadata.DefaultNameColumn,
		SymlinkPolicy:   scanner.SymlinkPolicySkip,
		LockFile:        DefaultLockFile,
		Audit:           audit.DefaultAuditConfig(),
		Watch: WatchSettings{
			DebounceSeconds: DefaultDebounceSeconds,
			IgnorePatterns:  watcher.DefaultIgnorePatterns(),
		},
	}
}

// Overrides carries command-line values that replace configured ones.
// Empty fields leave the configuration untouched.
type Overrides struct {
	MetadataFile    string
	TargetDirectory string
	NoAudit         bool
}

func (c *Configuration) apply(o Overrides) {
	if strings.TrimSpace(o.MetadataFile) != "" {
		c.MetadataFile = o.MetadataFile
	}
	if strings.TrimSpace(o.TargetDirectory) != "" {
		c.TargetDirectory = o.TargetDirectory
	}
	if o.NoAudit {
		c.Audit.Disabled = true
	}
}

// Load locates, parses, and validates a configuration file. It returns
// the configuration and the path it was read from, which is empty when
// the built-in defaults were used.
func Load(path string) (*Configuration, string, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides is Load with command-line overrides applied after
// parsing and before validation.
func LoadWithOverrides(path string, overrides Overrides) (*Configuration, string, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", err
		}
	} else {
		resolvedPath = ""
	}

	cfg.apply(overrides)

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func decodeFile(path string, cfg *Configuration) error {
	file, err := os.Open(path)
	if err != nil {
		return &ConfigError{Type: FileNotFound, Path: path, Message: err.Error(), Err: err}
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		message := err.Error()
		var strictErr *toml.StrictMissingError
		var decodeErr *toml.DecodeError
		if errors.As(err, &strictErr) {
			keys := make([]string, 0, len(strictErr.Errors))
			for _, e := range strictErr.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			message = "unknown keys: " + strings.Join(keys, ", ")
		} else if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			message = fmt.Sprintf("line %d, column %d: %s", row, col, decodeErr.Error())
		}
		return &ConfigError{Type: InvalidTOML, Path: path, Message: message, Err: err}
	}
	return nil
}

// resolveConfigPath returns the configuration file to read. An explicit
// path must exist; otherwise DefaultConfigFile is used when present.
func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, &ConfigError{Type: FileNotFound, Path: expanded, Err: err}
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, &ConfigError{Type: FileNotFound, Path: expanded, Message: "is a directory"}
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return projectPath, false, nil
}

func (c *Configuration) normalize() error {
	var err error
	if c.MetadataFile, err = expandPath(strings.TrimSpace(c.MetadataFile)); err != nil {
		return fmt.Errorf("metadata_file: %w", err)
	}
	if c.TargetDirectory, err = expandPath(strings.TrimSpace(c.TargetDirectory)); err != nil {
		return fmt.Errorf("target_directory: %w", err)
	}

	if strings.TrimSpace(c.LockFile) == "" {
		c.LockFile = DefaultLockFile
	}
	if c.LockFile, err = expandPath(c.LockFile); err != nil {
		return fmt.Errorf("lock_file: %w", err)
	}

	if strings.TrimSpace(c.Audit.LogDirectory) == "" {
		c.Audit.LogDirectory = audit.DefaultAuditConfig().LogDirectory
	}
	if c.Audit.LogDirectory, err = expandPath(c.Audit.LogDirectory); err != nil {
		return fmt.Errorf("audit.log_directory: %w", err)
	}

	c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
	if c.Encoding == "" {
		c.Encoding = metadata.EncodingISO88591
	}
	if c.Delimiter == "" {
		c.Delimiter = ";"
	}
	c.ISINColumn = strings.TrimSpace(c.ISINColumn)
	c.NameColumn = strings.TrimSpace(c.NameColumn)

	c.SymlinkPolicy = strings.ToLower(strings.TrimSpace(c.SymlinkPolicy))
	if c.SymlinkPolicy == "" {
		c.SymlinkPolicy = scanner.SymlinkPolicySkip
	}

	if c.Watch.DebounceSeconds == 0 {
		c.Watch.DebounceSeconds = DefaultDebounceSeconds
	}
	return nil
}

// Validate checks the settings. Missing input paths are not validation
// errors; see CheckPrerequisites.
func (c *Configuration) Validate() error {
	issues := ValidateSettings(c)
	if len(issues) == 0 {
		return nil
	}

	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Field+": "+issue.Message)
	}
	return &ConfigError{
		Type:    ValidationError,
		Message: strings.Join(messages, "; "),
	}
}

// CheckPrerequisites verifies that the metadata file and the target
// directory exist. It runs before any rename.
func (c *Configuration) CheckPrerequisites() error {
	info, err := os.Stat(c.MetadataFile)
	if err != nil || info.IsDir() {
		return &ConfigError{
			Type:    PrerequisiteMissing,
			Path:    c.MetadataFile,
			Message: "metadata file not found",
			Err:     err,
		}
	}

	info, err = os.Stat(c.TargetDirectory)
	if err != nil || !info.IsDir() {
		return &ConfigError{
			Type:    PrerequisiteMissing,
			Path:    c.TargetDirectory,
			Message: "PDF directory not found",
			Err:     err,
		}
	}

	return nil
}

// DelimiterRune returns the configured field separator.
func (c *Configuration) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// MetadataOptions returns the reader options for the metadata table.
func (c *Configuration) MetadataOptions() metadata.Options {
	return metadata.Options{
		Encoding:   c.Encoding,
		Delimiter:  c.DelimiterRune(),
		ISINColumn: c.ISINColumn,
		NameColumn: c.NameColumn,
	}
}

// ScanOptions returns the directory scan options.
func (c *Configuration) ScanOptions() scanner.ScanOptions {
	return scanner.ScanOptions{SymlinkPolicy: c.SymlinkPolicy}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
