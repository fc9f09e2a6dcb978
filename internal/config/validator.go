package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"isinrename/internal/metadata"
	"isinrename/internal/scanner"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string // Config key with the issue (e.g., "watch.ignore_patterns[1]")
	Message  string
	Severity ValidationSeverity
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration and the filesystem it points
// at and returns every finding, not just the first.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
		Valid:    true,
	}

	for _, group := range [][]ConfigValidationError{ValidatePaths(cfg), ValidateSettings(cfg)} {
		for _, issue := range group {
			if issue.Severity == SeverityError {
				result.Errors = append(result.Errors, issue)
			} else {
				result.Warnings = append(result.Warnings, issue)
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidatePaths checks the metadata file and target directory and warns
// about state files placed inside the target directory.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var issues []ConfigValidationError

	if info, err := os.Stat(cfg.MetadataFile); err != nil {
		issues = append(issues, statIssue("metadata_file", "file", cfg.MetadataFile, err))
	} else if info.IsDir() {
		issues = append(issues, ConfigValidationError{
			Field:    "metadata_file",
			Message:  "path is a directory: " + cfg.MetadataFile,
			Severity: SeverityError,
		})
	}

	if info, err := os.Stat(cfg.TargetDirectory); err != nil {
		issues = append(issues, statIssue("target_directory", "directory", cfg.TargetDirectory, err))
	} else if !info.IsDir() {
		issues = append(issues, ConfigValidationError{
			Field:    "target_directory",
			Message:  "path is not a directory: " + cfg.TargetDirectory,
			Severity: SeverityError,
		})
	}

	// State files inside the target directory would show up in the
	// directory statistics and in watch mode.
	if isWithin(cfg.LockFile, cfg.TargetDirectory) {
		issues = append(issues, ConfigValidationError{
			Field:    "lock_file",
			Message:  "lock file is inside the target directory: " + cfg.LockFile,
			Severity: SeverityWarning,
		})
	}
	if !cfg.Audit.Disabled && isWithin(cfg.Audit.LogDirectory, cfg.TargetDirectory) {
		issues = append(issues, ConfigValidationError{
			Field:    "audit.log_directory",
			Message:  "audit log is inside the target directory: " + cfg.Audit.LogDirectory,
			Severity: SeverityWarning,
		})
	}

	return issues
}

func statIssue(field, kind, path string, err error) ConfigValidationError {
	message := "error accessing " + kind + ": " + err.Error()
	switch {
	case os.IsNotExist(err):
		message = kind + " does not exist: " + path
	case os.IsPermission(err):
		message = kind + " is not accessible: " + path
	}
	return ConfigValidationError{Field: field, Message: message, Severity: SeverityError}
}

// ValidateSettings checks the values that do not depend on the filesystem.
func ValidateSettings(cfg *Configuration) []ConfigValidationError {
	var issues []ConfigValidationError
	fail := func(field, message string) {
		issues = append(issues, ConfigValidationError{Field: field, Message: message, Severity: SeverityError})
	}

	if strings.TrimSpace(cfg.MetadataFile) == "" {
		fail("metadata_file", "must not be empty")
	}
	if strings.TrimSpace(cfg.TargetDirectory) == "" {
		fail("target_directory", "must not be empty")
	}

	if !metadata.IsSupportedEncoding(cfg.Encoding) {
		fail("encoding", "unsupported encoding \""+cfg.Encoding+"\". Must be one of "+
			strings.Join(metadata.SupportedEncodings(), ", "))
	}

	switch r, size := utf8.DecodeRuneInString(cfg.Delimiter); {
	case utf8.RuneCountInString(cfg.Delimiter) != 1 || r == utf8.RuneError && size <= 1:
		fail("delimiter", "must be a single character, got \""+cfg.Delimiter+"\"")
	case r == '"' || r == '\r' || r == '\n':
		fail("delimiter", "cannot be a quote or line break")
	}

	if cfg.ISINColumn == "" {
		fail("isin_column", "must not be empty")
	}
	if cfg.NameColumn == "" {
		fail("name_column", "must not be empty")
	}
	if cfg.ISINColumn != "" && strings.EqualFold(cfg.ISINColumn, cfg.NameColumn) {
		fail("name_column", "must differ from isin_column")
	}

	switch cfg.SymlinkPolicy {
	case scanner.SymlinkPolicyFollow, scanner.SymlinkPolicySkip, scanner.SymlinkPolicyError:
	default:
		fail("symlink_policy", "invalid symlink policy: \""+cfg.SymlinkPolicy+"\". Must be \"follow\", \"skip\", or \"error\"")
	}

	if cfg.Watch.DebounceSeconds < 0 {
		fail("watch.debounce_seconds", "must be a positive number of seconds")
	}
	for i, pattern := range cfg.Watch.IgnorePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			fail("watch.ignore_patterns["+strconv.Itoa(i)+"]", "malformed pattern \""+pattern+"\"")
		}
	}

	return issues
}

// isWithin reports whether path lies inside dir.
func isWithin(path, dir string) bool {
	if path == "" || dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
