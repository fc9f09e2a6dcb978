// Package audit records every rename isinrename performs in an
// append-only JSON Lines log, so that runs can be listed and reversed.
package audit

import "time"

// RunID is a unique identifier for each program execution.
// It uses UUID v4 format: "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	// Rename pass events
	EventRename        EventType = "RENAME"
	EventAlreadyExists EventType = "ALREADY_EXISTS"
	EventNoMatch       EventType = "NO_MATCH"
	EventError         EventType = "ERROR"

	// Undo events
	EventUndoRename       EventType = "UNDO_RENAME"
	EventUndoSkip         EventType = "UNDO_SKIP"
	EventCollision        EventType = "COLLISION"
	EventSourceMissing    EventType = "SOURCE_MISSING"
	EventContentChanged   EventType = "CONTENT_CHANGED"
	EventConflictDetected EventType = "CONFLICT_DETECTED"

	// System events
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode explains a skipped or failed operation.
type ReasonCode string

const (
	ReasonNoMatch              ReasonCode = "NO_MATCH"
	ReasonTargetExists         ReasonCode = "TARGET_EXISTS"
	ReasonIdentityMismatch     ReasonCode = "IDENTITY_MISMATCH"
	ReasonDestinationOccupied  ReasonCode = "DESTINATION_OCCUPIED"
	ReasonSourceNotFound       ReasonCode = "SOURCE_NOT_FOUND"
	ReasonConflictWithLaterRun ReasonCode = "CONFLICT_WITH_LATER_RUN"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusInProgress  RunStatus = "IN_PROGRESS"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusFailed      RunStatus = "FAILED"
	RunStatusInterrupted RunStatus = "INTERRUPTED"
)

// RunType represents the type of run.
type RunType string

const (
	RunTypeRename RunType = "RENAME"
	RunTypeUndo   RunType = "UNDO"
)

// Metadata keys carried by RENAME events.
const (
	MetaISIN    = "isin"
	MetaCompany = "company"
	MetaShape   = "shape"
	MetaLine    = "line"
)

// FileIdentity captures the attributes used to recognise a renamed file.
type FileIdentity struct {
	ContentHash string    `json:"contentHash"` // SHA-256 hex string
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modTime"`
}

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent represents a single audit record for a file operation or system event.
type AuditEvent struct {
	Timestamp       time.Time         `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	FileIdentity    *FileIdentity     `json:"fileIdentity,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains the counters of a completed run. For undo runs
// Renamed counts restored files and NotFound counts skipped ones.
type RunSummary struct {
	Rows          int `json:"rows"`
	Renamed       int `json:"renamed"`
	AlreadyExists int `json:"alreadyExists"`
	NotFound      int `json:"notFound"`
	Errors        int `json:"errors"`
}

// RunInfo contains metadata and summary for a run.
type RunInfo struct {
	RunID        RunID      `json:"runId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Status       RunStatus  `json:"status"`
	RunType      RunType    `json:"runType"`
	AppVersion   string     `json:"appVersion"`
	MachineID    string     `json:"machineId"`
	Summary      RunSummary `json:"summary"`
	UndoTargetID *RunID     `json:"undoTargetId,omitempty"`
}

// LogFileName is the name of the audit log inside the log directory.
const LogFileName = "isinrename-audit.jsonl"

// AuditConfig holds configuration for the audit system.
type AuditConfig struct {
	LogDirectory string `toml:"log_directory" json:"logDirectory"`
	Disabled     bool   `toml:"disabled" json:"disabled"`
}

// DefaultAuditConfig returns an AuditConfig with sensible defaults.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		LogDirectory: ".isinrename/audit",
	}
}
