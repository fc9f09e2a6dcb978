package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoActiveRun is returned when an event is recorded outside a run.
var ErrNoActiveRun = errors.New("no active run: call StartRun first")

// AuditWriter handles all write operations to the audit log.
// It implements append-only semantics with fail-fast behavior.
type AuditWriter struct {
	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	logPath    string
	currentRun *RunID
	config     AuditConfig
}

// NewAuditWriter creates the log directory if needed and opens the log
// for appending. A freshly created log starts with a LOG_INITIALIZED
// event.
func NewAuditWriter(config AuditConfig) (*AuditWriter, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(config.LogDirectory, LogFileName)

	isNewLog := false
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		isNewLog = true
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	writer := &AuditWriter{
		file:    file,
		writer:  bufio.NewWriter(file),
		logPath: logPath,
		config:  config,
	}

	if isNewLog {
		event := AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata: map[string]string{
				"logPath": logPath,
			},
		}
		if err := writer.writeEventLocked(event); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return writer, nil
}

// GenerateRunID generates a new UUID v4 Run ID.
func GenerateRunID() (RunID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return RunID(id.String()), nil
}

// StartRun begins a RENAME run and writes its RUN_START event.
func (w *AuditWriter) StartRun(appVersion, machineID string) (RunID, error) {
	return w.startRun(map[string]string{
		"appVersion": appVersion,
		"machineId":  machineID,
		"runType":    string(RunTypeRename),
	})
}

// StartUndoRun begins an UNDO run that reverses targetRunID.
func (w *AuditWriter) StartUndoRun(appVersion, machineID string, targetRunID RunID) (RunID, error) {
	return w.startRun(map[string]string{
		"appVersion":   appVersion,
		"machineId":    machineID,
		"runType":      string(RunTypeUndo),
		"undoTargetId": string(targetRunID),
	})
}

func (w *AuditWriter) startRun(metadata map[string]string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID, err := GenerateRunID()
	if err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunStart,
		Status:    StatusSuccess,
		Metadata:  metadata,
	}

	if err := w.writeEventLocked(event); err != nil {
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	w.currentRun = &runID
	return runID, nil
}

// WriteEvent writes a single audit event to the log.
// It fails fast if the write cannot be completed.
func (w *AuditWriter) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.writeEventLocked(event)
}

// writeEventLocked appends one JSON line and syncs it to disk before
// returning, so the record exists before the next file operation.
func (w *AuditWriter) writeEventLocked(event AuditEvent) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}

	return nil
}

// EndRun records the run completion status and summary.
func (w *AuditWriter) EndRun(runID RunID, status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunEnd,
		Status:    runStatusToOperationStatus(status),
		Metadata: map[string]string{
			"status":        string(status),
			"rows":          strconv.Itoa(summary.Rows),
			"renamed":       strconv.Itoa(summary.Renamed),
			"alreadyExists": strconv.Itoa(summary.AlreadyExists),
			"notFound":      strconv.Itoa(summary.NotFound),
			"errors":        strconv.Itoa(summary.Errors),
		},
	}

	if err := w.writeEventLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	w.currentRun = nil
	return nil
}

func runStatusToOperationStatus(status RunStatus) OperationStatus {
	switch status {
	case RunStatusFailed, RunStatusInterrupted:
		return StatusFailure
	default:
		return StatusSuccess
	}
}

// Close flushes any buffered data and closes the audit log file.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}

	return nil
}

// CurrentRunID returns the current run ID, or nil if no run is active.
func (w *AuditWriter) CurrentRunID() *RunID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentRun
}

// LogPath returns the path to the audit log file.
func (w *AuditWriter) LogPath() string {
	return w.logPath
}

// Config returns the audit configuration.
func (w *AuditWriter) Config() AuditConfig {
	return w.config
}

// record stamps event with the active run and writes it.
func (w *AuditWriter) record(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}
	event.Timestamp = time.Now().UTC()
	event.RunID = *w.currentRun

	return w.writeEventLocked(event)
}

// RecordRename records a completed rename together with the identity of
// the renamed file and the row it came from.
func (w *AuditWriter) RecordRename(source, dest string, identity *FileIdentity, details map[string]string) error {
	return w.record(AuditEvent{
		EventType:       EventRename,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
		FileIdentity:    identity,
		Metadata:        details,
	})
}

// RecordAlreadyExists records a candidate left in place because its
// target name was taken.
func (w *AuditWriter) RecordAlreadyExists(source, dest string, details map[string]string) error {
	return w.record(AuditEvent{
		EventType:       EventAlreadyExists,
		Status:          StatusSkipped,
		SourcePath:      source,
		DestinationPath: dest,
		ReasonCode:      ReasonTargetExists,
		Metadata:        details,
	})
}

// RecordNoMatch records a valid row for which no file matched any shape.
func (w *AuditWriter) RecordNoMatch(details map[string]string) error {
	return w.record(AuditEvent{
		EventType:  EventNoMatch,
		Status:     StatusSkipped,
		ReasonCode: ReasonNoMatch,
		Metadata:   details,
	})
}

// RecordError records a failed file operation.
func (w *AuditWriter) RecordError(source, errType, errMsg, operation string) error {
	return w.record(AuditEvent{
		EventType:  EventError,
		Status:     StatusFailure,
		SourcePath: source,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Operation:    operation,
		},
	})
}
