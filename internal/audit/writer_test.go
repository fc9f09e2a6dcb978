package audit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var uuidV4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Property: Run IDs Are Unique UUID v4 Values

func TestRunIDUniquenessAndFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Generated run IDs are unique and match UUID v4 format", prop.ForAll(
		func(count int) bool {
			seen := make(map[RunID]bool)
			for i := 0; i < count; i++ {
				runID, err := GenerateRunID()
				if err != nil || !uuidV4Regex.MatchString(string(runID)) || seen[runID] {
					return false
				}
				seen[runID] = true
			}
			return true
		},
		gen.IntRange(10, 50),
	))

	properties.TestingRun(t)
}

func newTestWriter(t *testing.T) (*AuditWriter, string) {
	t.Helper()
	dir := t.TempDir()
	writer, err := NewAuditWriter(AuditConfig{LogDirectory: dir})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	t.Cleanup(func() { writer.Close() })
	return writer, dir
}

// Property: Append-Only Log

func TestAppendOnlyLogIntegrity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("Earlier bytes of the log never change", prop.ForAll(
		func(eventCount int) bool {
			dir, err := os.MkdirTemp("", "isinrename-audit-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)

			writer, err := NewAuditWriter(AuditConfig{LogDirectory: dir})
			if err != nil {
				return false
			}
			defer writer.Close()

			if _, err := writer.StartRun("test", "host"); err != nil {
				return false
			}

			var previous []byte
			for i := 0; i < eventCount; i++ {
				if err := writer.RecordNoMatch(map[string]string{MetaISIN: "DE0005140008"}); err != nil {
					return false
				}
				current, err := os.ReadFile(writer.LogPath())
				if err != nil {
					return false
				}
				if len(current) <= len(previous) || !bytes.HasPrefix(current, previous) {
					return false
				}
				previous = current
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func TestNewAuditWriter_LogInitializedOnlyOnce(t *testing.T) {
	writer, dir := newTestWriter(t)
	if writer.LogPath() != filepath.Join(dir, LogFileName) {
		t.Errorf("Unexpected log path %s", writer.LogPath())
	}
	writer.Close()

	second, err := NewAuditWriter(AuditConfig{LogDirectory: dir})
	if err != nil {
		t.Fatal(err)
	}
	second.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte(`"LOG_INITIALIZED"`)); n != 1 {
		t.Errorf("Expected one LOG_INITIALIZED event, got %d", n)
	}
}

func TestRecordWithoutRun(t *testing.T) {
	writer, _ := newTestWriter(t)

	err := writer.RecordRename("a", "b", nil, nil)
	if !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("Expected ErrNoActiveRun, got %v", err)
	}
}

func TestWriterRunLifecycle(t *testing.T) {
	writer, dir := newTestWriter(t)

	runID, err := writer.StartRun("1.2.3", "host-a")
	if err != nil {
		t.Fatal(err)
	}
	if got := writer.CurrentRunID(); got == nil || *got != runID {
		t.Fatalf("CurrentRunID = %v, want %s", got, runID)
	}

	details := map[string]string{MetaISIN: "DE0005140008", MetaCompany: "DEUTSCHE BANK", MetaShape: "EN"}
	if err := writer.RecordRename("/d/DE0005140008-x-en.pdf", "/d/DEUTSCHE BANK_EN.pdf", nil, details); err != nil {
		t.Fatal(err)
	}
	if err := writer.RecordAlreadyExists("/d/DE0005140008.pdf", "/d/DEUTSCHE BANK.pdf", details); err != nil {
		t.Fatal(err)
	}
	if err := writer.RecordError("/d/X.pdf", "PERMISSION_DENIED", "denied", "rename"); err != nil {
		t.Fatal(err)
	}
	summary := RunSummary{Rows: 3, Renamed: 1, AlreadyExists: 1, NotFound: 1, Errors: 1}
	if err := writer.EndRun(runID, RunStatusCompleted, summary); err != nil {
		t.Fatal(err)
	}
	if writer.CurrentRunID() != nil {
		t.Error("Expected no active run after EndRun")
	}

	run, err := NewAuditReader(dir).GetRunByID(runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Summary != summary {
		t.Errorf("Summary = %+v, want %+v", run.Summary, summary)
	}
	if run.Status != RunStatusCompleted || run.RunType != RunTypeRename {
		t.Errorf("Unexpected run info %+v", run)
	}
	if run.AppVersion != "1.2.3" || run.MachineID != "host-a" {
		t.Errorf("Unexpected run metadata %+v", run)
	}
}

func TestWriterErrorHandling_UncreatableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewAuditWriter(AuditConfig{LogDirectory: filepath.Join(blocker, "audit")}); err == nil {
		t.Error("Expected error when the log directory cannot be created")
	}
}

func TestWriterErrorHandling_WriteAfterClose(t *testing.T) {
	writer, _ := newTestWriter(t)
	if _, err := writer.StartRun("test", "host"); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	if err := writer.RecordNoMatch(nil); err == nil {
		t.Error("Expected write after close to fail")
	}
}
