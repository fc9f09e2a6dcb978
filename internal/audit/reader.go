package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// ErrRunNotFound is returned when a requested run is not in the log.
var ErrRunNotFound = errors.New("run not found")

// IntegrityStatus represents the result of a log integrity check.
type IntegrityStatus string

const (
	IntegrityOK      IntegrityStatus = "OK"
	IntegrityMissing IntegrityStatus = "MISSING"
	IntegrityCorrupt IntegrityStatus = "CORRUPT"
	IntegrityEmpty   IntegrityStatus = "EMPTY"
)

// LogIntegrityResult contains the result of a log integrity check.
type LogIntegrityResult struct {
	Status       IntegrityStatus
	FilePath     string
	TotalLines   int
	ErrorMessage string
	ErrorLine    int // 0 if N/A
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	EventTypes []EventType     // empty = all types
	Status     OperationStatus // empty = all statuses
	StartTime  *time.Time
	EndTime    *time.Time
}

// AuditReader reads and parses audit events from the log.
type AuditReader struct {
	logDir string
}

// NewAuditReader creates a new AuditReader for the given log directory.
func NewAuditReader(logDir string) *AuditReader {
	return &AuditReader{
		logDir: logDir,
	}
}

// LogPath returns the path of the log file read.
func (r *AuditReader) LogPath() string {
	return filepath.Join(r.logDir, LogFileName)
}

// ListRuns returns all runs, oldest first.
func (r *AuditReader) ListRuns() ([]RunInfo, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return extractRunInfos(events), nil
}

// GetRun returns all events for a specific run in log order.
func (r *AuditReader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	var runEvents []AuditEvent
	for _, event := range events {
		if event.RunID == runID {
			runEvents = append(runEvents, event)
		}
	}

	if len(runEvents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return runEvents, nil
}

// GetRunByID returns the RunInfo for a specific run ID.
func (r *AuditReader) GetRunByID(runID RunID) (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].RunID == runID {
			return &runs[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// GetLatestRun returns the most recent run by start timestamp.
func (r *AuditReader) GetLatestRun() (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: log is empty", ErrRunNotFound)
	}

	return &runs[len(runs)-1], nil
}

// GetLatestRunOfType returns the most recent run of the given type.
func (r *AuditReader) GetLatestRunOfType(runType RunType) (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}

	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].RunType == runType {
			return &runs[i], nil
		}
	}

	return nil, fmt.Errorf("%w: no %s run recorded", ErrRunNotFound, runType)
}

// FilterEvents returns events of one run matching the filter.
func (r *AuditReader) FilterEvents(runID RunID, filter EventFilter) ([]AuditEvent, error) {
	events, err := r.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var filtered []AuditEvent
	for _, event := range events {
		if matchesFilter(event, filter) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func matchesFilter(event AuditEvent, filter EventFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Status != "" && event.Status != filter.Status {
		return false
	}

	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}

	return true
}

// readAllEvents reads every event in log order. A missing log reads as
// empty.
func (r *AuditReader) readAllEvents() ([]AuditEvent, error) {
	file, err := os.Open(r.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []AuditEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := newLineScanner(file)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	return events, nil
}

func newLineScanner(rd io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(rd)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)
	return scanner
}

// extractRunInfos groups events by run in order of first appearance and
// sorts the result by start time. Ties keep log order.
func extractRunInfos(events []AuditEvent) []RunInfo {
	var order []RunID
	runEvents := make(map[RunID][]AuditEvent)
	for _, event := range events {
		// System events carry no run ID.
		if event.RunID == "" {
			continue
		}
		if _, seen := runEvents[event.RunID]; !seen {
			order = append(order, event.RunID)
		}
		runEvents[event.RunID] = append(runEvents[event.RunID], event)
	}

	runs := make([]RunInfo, 0, len(order))
	for _, runID := range order {
		runs = append(runs, buildRunInfo(runID, runEvents[runID]))
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})

	return runs
}

// buildRunInfo folds the events of one run. Counters come from the
// RUN_END summary when present, otherwise from the recorded events.
func buildRunInfo(runID RunID, events []AuditEvent) RunInfo {
	info := RunInfo{
		RunID:   runID,
		Status:  RunStatusInProgress,
		RunType: RunTypeRename,
	}

	var counted RunSummary
	ended := false

	for _, event := range events {
		switch event.EventType {
		case EventRunStart:
			info.StartTime = event.Timestamp
			if event.Metadata != nil {
				info.AppVersion = event.Metadata["appVersion"]
				info.MachineID = event.Metadata["machineId"]
				if runType, ok := event.Metadata["runType"]; ok {
					info.RunType = RunType(runType)
				}
				if undoTarget, ok := event.Metadata["undoTargetId"]; ok {
					targetID := RunID(undoTarget)
					info.UndoTargetID = &targetID
					info.RunType = RunTypeUndo
				}
			}

		case EventRunEnd:
			ended = true
			endTime := event.Timestamp
			info.EndTime = &endTime
			if event.Metadata != nil {
				if status, ok := event.Metadata["status"]; ok {
					info.Status = RunStatus(status)
				}
				info.Summary = parseSummaryFromMetadata(event.Metadata)
			}

		case EventRename, EventUndoRename:
			counted.Renamed++
		case EventAlreadyExists:
			counted.AlreadyExists++
		case EventNoMatch, EventUndoSkip:
			counted.NotFound++
		case EventError, EventCollision, EventSourceMissing, EventContentChanged, EventConflictDetected:
			counted.Errors++
		}
	}

	if !ended {
		info.Summary = counted
	}

	return info
}

func parseSummaryFromMetadata(metadata map[string]string) RunSummary {
	var summary RunSummary
	summary.Rows, _ = strconv.Atoi(metadata["rows"])
	summary.Renamed, _ = strconv.Atoi(metadata["renamed"])
	summary.AlreadyExists, _ = strconv.Atoi(metadata["alreadyExists"])
	summary.NotFound, _ = strconv.Atoi(metadata["notFound"])
	summary.Errors, _ = strconv.Atoi(metadata["errors"])
	return summary
}

// CheckLogIntegrity validates that the log exists, parses line by line,
// and ends with a complete line.
func (r *AuditReader) CheckLogIntegrity() (*LogIntegrityResult, error) {
	filePath := r.LogPath()
	result := &LogIntegrityResult{
		FilePath: filePath,
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		result.Status = IntegrityMissing
		result.ErrorMessage = "log file does not exist"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	if fileInfo.Size() == 0 {
		result.Status = IntegrityEmpty
		result.ErrorMessage = "log file is empty"
		return result, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	validLines, corruptLine, corruptErr := validateJSONLines(file)
	result.TotalLines = validLines

	if corruptErr != nil {
		result.Status = IntegrityCorrupt
		result.ErrorLine = corruptLine
		result.ErrorMessage = corruptErr.Error()
		return result, nil
	}

	result.Status = IntegrityOK
	return result, nil
}

func validateJSONLines(file *os.File) (validLines int, corruptLine int, err error) {
	scanner := newLineScanner(file)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !json.Valid(line) {
			return validLines, lineNum, fmt.Errorf("invalid JSON at line %d", lineNum)
		}

		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return validLines, lineNum, fmt.Errorf("failed to parse event at line %d: %w", lineNum, err)
		}

		validLines++
	}

	if err := scanner.Err(); err != nil {
		return validLines, lineNum, fmt.Errorf("error reading file: %w", err)
	}

	// A missing trailing newline means the last write was cut short.
	if _, err := file.Seek(-1, io.SeekEnd); err != nil {
		return validLines, lineNum, fmt.Errorf("failed to seek to end: %w", err)
	}
	last := make([]byte, 1)
	if _, err := file.Read(last); err != nil {
		return validLines, lineNum, fmt.Errorf("failed to read last byte: %w", err)
	}
	if last[0] != '\n' {
		return validLines, lineNum, fmt.Errorf("truncated last line: file does not end with newline")
	}

	return validLines, 0, nil
}
