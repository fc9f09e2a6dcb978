package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"isinrename/internal/audit"
)

// Recorder persists the outcome of a pass. *audit.AuditWriter satisfies
// it. A Recorder error aborts the pass.
type Recorder interface {
	RecordRename(source, dest string, identity *audit.FileIdentity, details map[string]string) error
	RecordAlreadyExists(source, dest string, details map[string]string) error
	RecordNoMatch(details map[string]string) error
	RecordError(source, errType, errMsg, operation string) error
}

type nopRecorder struct{}

func (nopRecorder) RecordRename(string, string, *audit.FileIdentity, map[string]string) error {
	return nil
}

func (nopRecorder) RecordAlreadyExists(string, string, map[string]string) error { return nil }

func (nopRecorder) RecordNoMatch(map[string]string) error { return nil }

func (nopRecorder) RecordError(string, string, string, string) error { return nil }

// RunAudited wraps one pass in an audit run: RUN_START before the first
// row and RUN_END with the pass counters afterwards. A nil writer runs
// the pass unrecorded.
func RunAudited(ctx context.Context, r *Renamer, writer *audit.AuditWriter, appVersion, machineID string) (*Result, audit.RunID, error) {
	if writer == nil || r.opts.DryRun {
		result, err := r.Run(ctx)
		return result, "", err
	}

	// Prerequisites are checked first so a missing dataset leaves no
	// empty run in the log.
	if err := r.cfg.CheckPrerequisites(); err != nil {
		return nil, "", err
	}

	runID, err := writer.StartRun(appVersion, machineID)
	if err != nil {
		return nil, "", fmt.Errorf("start audit run: %w", err)
	}

	recorded := *r
	recorded.recorder = writer
	recorded.captureIdentity = true

	result, runErr := recorded.Run(ctx)

	status := audit.RunStatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = audit.RunStatusInterrupted
	case runErr != nil:
		status = audit.RunStatusFailed
	}

	var summary audit.RunSummary
	if result != nil {
		summary = result.AuditSummary()
	}
	if err := writer.EndRun(runID, status, summary); err != nil && runErr == nil {
		runErr = fmt.Errorf("end audit run: %w", err)
	}

	return result, runID, runErr
}
