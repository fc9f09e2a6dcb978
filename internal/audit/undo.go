package audit

import (
	"errors"
	"fmt"
	"sort"

	"isinrename/internal/organizer"
)

// ReasonNoOpEvent marks recorded events that need no reversal.
const ReasonNoOpEvent ReasonCode = "NO_OP_EVENT"

// UndoResult contains the result of an undo operation.
type UndoResult struct {
	UndoRunID      RunID
	TargetRunID    RunID
	TotalEvents    int
	Restored       int
	Skipped        int // events that needed no action
	Failed         int
	FailureDetails []UndoError
}

// UndoError describes one rename that could not be reversed.
type UndoError struct {
	SourcePath string // original ISIN-based path
	DestPath   string // where the file was renamed to
	Reason     ReasonCode
	Message    string
}

// UndoPreview shows what would be undone without executing.
type UndoPreview struct {
	TargetRunID  RunID
	EventsToUndo []UndoPreviewEvent
	TotalRenames int
	TotalNoOps   int
}

// UndoPreviewEvent represents a single event in the undo preview.
type UndoPreviewEvent struct {
	EventType   EventType
	SourcePath  string
	DestPath    string
	WillRestore bool
}

// UndoEngine reverses recorded rename runs. Events are processed newest
// first, the identity of every file is verified before it is moved back,
// and an occupied original name is never overwritten.
type UndoEngine struct {
	reader     *AuditReader
	writer     *AuditWriter
	appVersion string
	machineID  string
}

// NewUndoEngine creates a new UndoEngine with the given reader and writer.
func NewUndoEngine(reader *AuditReader, writer *AuditWriter, appVersion, machineID string) *UndoEngine {
	return &UndoEngine{
		reader:     reader,
		writer:     writer,
		appVersion: appVersion,
		machineID:  machineID,
	}
}

// ErrAlreadyUndone is returned when a rename run has already been
// reversed by an earlier undo run.
var ErrAlreadyUndone = errors.New("run has already been undone")

// LatestUndoable returns the most recent rename run that no undo run has
// reversed yet.
func (e *UndoEngine) LatestUndoable() (*RunInfo, error) {
	runs, err := e.reader.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	undone := undoneRuns(runs)
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].RunType == RunTypeRename && !undone[runs[i].RunID] {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no %s run left to undo", ErrRunNotFound, RunTypeRename)
}

// undoneRuns returns the rename runs reversed by an undo run. A failed
// undo restored nothing, so its target stays undoable.
func undoneRuns(runs []RunInfo) map[RunID]bool {
	undone := make(map[RunID]bool)
	for _, run := range runs {
		if run.RunType == RunTypeUndo && run.UndoTargetID != nil && run.Status != RunStatusFailed {
			undone[*run.UndoTargetID] = true
		}
	}
	return undone
}

// UndoLatest undoes the most recent rename run not undone yet.
func (e *UndoEngine) UndoLatest() (*UndoResult, error) {
	run, err := e.LatestUndoable()
	if err != nil {
		return nil, err
	}
	return e.UndoRun(run.RunID)
}

// UndoRun undoes a specific run by ID. The returned error is reserved for
// failures that stop the undo as a whole; per-file problems are reported
// in the result.
func (e *UndoEngine) UndoRun(runID RunID) (*UndoResult, error) {
	runInfo, err := e.reader.GetRunByID(runID)
	if err != nil {
		return nil, err
	}

	if runInfo.RunType == RunTypeUndo {
		return nil, fmt.Errorf("cannot undo an UNDO run")
	}
	if err := e.checkNotUndone(runID); err != nil {
		return nil, err
	}

	events, err := e.reader.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for run %s: %w", runID, err)
	}

	conflictMap, err := e.buildConflictMap(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to build conflict map: %w", err)
	}

	undoRunID, err := e.writer.StartUndoRun(e.appVersion, e.machineID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to start undo run: %w", err)
	}

	result := &UndoResult{
		UndoRunID:   undoRunID,
		TargetRunID: runID,
	}

	sortedEvents := sortEventsReverse(events)
	result.TotalEvents = len(sortedEvents)

	for _, event := range sortedEvents {
		if event.EventType != EventRename {
			if err := e.writer.record(AuditEvent{
				EventType:  EventUndoSkip,
				Status:     StatusSkipped,
				SourcePath: event.SourcePath,
				ReasonCode: ReasonNoOpEvent,
				Metadata:   map[string]string{"originalEvent": string(event.EventType)},
			}); err != nil {
				return result, err
			}
			result.Skipped++
			continue
		}

		if conflictingRun, ok := checkConflict(event, conflictMap); ok {
			undoErr := UndoError{
				SourcePath: event.SourcePath,
				DestPath:   event.DestinationPath,
				Reason:     ReasonConflictWithLaterRun,
				Message:    fmt.Sprintf("file was renamed again by later run %s", conflictingRun),
			}
			if err := e.writer.record(AuditEvent{
				EventType:       EventConflictDetected,
				Status:          StatusFailure,
				SourcePath:      event.SourcePath,
				DestinationPath: event.DestinationPath,
				ReasonCode:      ReasonConflictWithLaterRun,
				Metadata:        map[string]string{"conflictingRunId": string(conflictingRun)},
			}); err != nil {
				return result, err
			}
			result.Failed++
			result.FailureDetails = append(result.FailureDetails, undoErr)
			continue
		}

		undoErr, err := e.undoRename(event)
		if err != nil {
			return result, err
		}
		if undoErr != nil {
			result.Failed++
			result.FailureDetails = append(result.FailureDetails, *undoErr)
			continue
		}
		result.Restored++
	}

	summary := RunSummary{
		Rows:     result.TotalEvents,
		Renamed:  result.Restored,
		NotFound: result.Skipped,
		Errors:   result.Failed,
	}

	status := RunStatusCompleted
	if result.Failed > 0 && result.Restored == 0 {
		status = RunStatusFailed
	}

	if err := e.writer.EndRun(undoRunID, status, summary); err != nil {
		return result, fmt.Errorf("failed to end undo run: %w", err)
	}

	return result, nil
}

// undoRename moves one renamed file back to its ISIN-based name. It
// returns an UndoError for a file that cannot be restored and a plain
// error only when the audit log cannot be written.
func (e *UndoEngine) undoRename(event AuditEvent) (*UndoError, error) {
	original := event.SourcePath
	current := event.DestinationPath

	fail := func(eventType EventType, reason ReasonCode, message string) (*UndoError, error) {
		rec := AuditEvent{
			EventType:       eventType,
			Status:          StatusFailure,
			SourcePath:      original,
			DestinationPath: current,
			ReasonCode:      reason,
		}
		if eventType == EventContentChanged || eventType == EventError {
			rec.ErrorDetails = &ErrorDetails{
				ErrorType:    string(eventType),
				ErrorMessage: message,
				Operation:    "undo_rename",
			}
		}
		if err := e.writer.record(rec); err != nil {
			return nil, err
		}
		return &UndoError{
			SourcePath: original,
			DestPath:   current,
			Reason:     reason,
			Message:    message,
		}, nil
	}

	if event.FileIdentity != nil {
		match, err := VerifyIdentity(current, *event.FileIdentity)
		if err != nil {
			return fail(EventError, ReasonIdentityMismatch, fmt.Sprintf("identity verification error: %v", err))
		}
		switch match {
		case IdentityNotFound:
			return fail(EventSourceMissing, ReasonSourceNotFound, "renamed file no longer exists")
		case IdentitySizeMismatch:
			return fail(EventContentChanged, ReasonIdentityMismatch, "file size has changed since the rename")
		case IdentityHashMismatch:
			return fail(EventContentChanged, ReasonIdentityMismatch, "file content has changed since the rename")
		}
	}

	if _, err := organizer.Rename(current, original); err != nil {
		var moveErr *organizer.MoveError
		if errors.As(err, &moveErr) {
			switch moveErr.Type {
			case organizer.DestinationExists:
				return fail(EventCollision, ReasonDestinationOccupied, "original name is already taken")
			case organizer.SourceNotFound:
				return fail(EventSourceMissing, ReasonSourceNotFound, "renamed file no longer exists")
			}
		}
		return fail(EventError, "", err.Error())
	}

	if err := e.writer.record(AuditEvent{
		EventType:       EventUndoRename,
		Status:          StatusSuccess,
		SourcePath:      current,
		DestinationPath: original,
		FileIdentity:    event.FileIdentity,
	}); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *UndoEngine) checkNotUndone(runID RunID) error {
	runs, err := e.reader.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to read runs: %w", err)
	}
	if undoneRuns(runs)[runID] {
		return fmt.Errorf("%w: %s", ErrAlreadyUndone, runID)
	}
	return nil
}

// PreviewUndo shows what would be undone without executing.
func (e *UndoEngine) PreviewUndo(runID RunID) (*UndoPreview, error) {
	runInfo, err := e.reader.GetRunByID(runID)
	if err != nil {
		return nil, err
	}
	if runInfo.RunType == RunTypeUndo {
		return nil, fmt.Errorf("cannot undo an UNDO run")
	}
	if err := e.checkNotUndone(runID); err != nil {
		return nil, err
	}

	events, err := e.reader.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for run %s: %w", runID, err)
	}

	preview := &UndoPreview{
		TargetRunID: runID,
	}

	for _, event := range sortEventsReverse(events) {
		previewEvent := UndoPreviewEvent{
			EventType:  event.EventType,
			SourcePath: event.SourcePath,
			DestPath:   event.DestinationPath,
		}

		if event.EventType == EventRename {
			previewEvent.WillRestore = true
			preview.TotalRenames++
		} else {
			preview.TotalNoOps++
		}

		preview.EventsToUndo = append(preview.EventsToUndo, previewEvent)
	}

	return preview, nil
}

// sortEventsReverse keeps the file events of a run, newest first. Equal
// timestamps fall back to reverse log order.
func sortEventsReverse(events []AuditEvent) []AuditEvent {
	var fileEvents []AuditEvent
	for i := len(events) - 1; i >= 0; i-- {
		if isFileEvent(events[i].EventType) {
			fileEvents = append(fileEvents, events[i])
		}
	}

	sort.SliceStable(fileEvents, func(i, j int) bool {
		return fileEvents[i].Timestamp.After(fileEvents[j].Timestamp)
	})

	return fileEvents
}

func isFileEvent(eventType EventType) bool {
	switch eventType {
	case EventRename, EventAlreadyExists, EventNoMatch, EventError:
		return true
	default:
		return false
	}
}

// buildConflictMap collects the paths touched by rename runs that started
// after the target run.
func (e *UndoEngine) buildConflictMap(targetRunID RunID) (map[string]RunID, error) {
	conflictMap := make(map[string]RunID)

	runs, err := e.reader.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	// Runs are in start order, so everything after the target is later.
	targetIndex := -1
	for i, run := range runs {
		if run.RunID == targetRunID {
			targetIndex = i
			break
		}
	}
	if targetIndex == -1 {
		return conflictMap, nil
	}

	for _, run := range runs[targetIndex+1:] {
		if run.RunType == RunTypeUndo {
			continue
		}

		events, err := e.reader.GetRun(run.RunID)
		if err != nil {
			continue
		}

		for _, event := range events {
			if event.EventType != EventRename {
				continue
			}
			conflictMap[event.SourcePath] = run.RunID
			conflictMap[event.DestinationPath] = run.RunID
		}
	}

	return conflictMap, nil
}

func checkConflict(event AuditEvent, conflictMap map[string]RunID) (RunID, bool) {
	if runID, ok := conflictMap[event.DestinationPath]; ok {
		return runID, true
	}
	if runID, ok := conflictMap[event.SourcePath]; ok {
		return runID, true
	}
	return "", false
}
