// Package orchestrator runs the isinrename rename pass: it walks the
// metadata table row by row and renames the matching ISIN-named reports
// in the target directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"isinrename/internal/audit"
	"isinrename/internal/config"
	"isinrename/internal/matcher"
	"isinrename/internal/metadata"
	"isinrename/internal/normalizer"
	"isinrename/internal/organizer"
	"isinrename/internal/scanner"
)

// EventKind identifies what happened to a row or a candidate file.
type EventKind string

const (
	EventRenamed       EventKind = "RENAMED"
	EventAlreadyExists EventKind = "ALREADY_EXISTS"
	EventNoMatch       EventKind = "NO_MATCH"
	EventRowSkipped    EventKind = "ROW_SKIPPED"
	EventMalformedRow  EventKind = "MALFORMED_ROW"
	EventError         EventKind = "ERROR"
)

// Event is emitted to the Observer for every outcome of a pass.
type Event struct {
	Kind        EventKind
	Line        int
	ISIN        string
	Company     string
	Shape       matcher.Shape
	Source      string // Candidate file name
	Destination string // Target file name
	Err         error
	DryRun      bool
}

// Observer receives events as they happen.
type Observer func(Event)

// Operation is one rename attempted (or planned) by a pass.
type Operation struct {
	Line        int
	ISIN        string
	Shape       matcher.Shape
	Source      string
	Destination string
	Kind        EventKind // EventRenamed, EventAlreadyExists or EventError
}

// Result holds the counters of a pass.
type Result struct {
	Rows          int // Data rows read
	SkippedRows   int // Rows without ISIN or company name
	MalformedRows int // Lines that could not be parsed
	Renamed       int
	AlreadyExists int
	NotFound      int // Valid rows for which no shape matched
	Errors        int
	DryRun        bool
	Operations    []Operation
}

// AuditSummary converts the counters for the audit trail.
func (r *Result) AuditSummary() audit.RunSummary {
	return audit.RunSummary{
		Rows:          r.Rows,
		Renamed:       r.Renamed,
		AlreadyExists: r.AlreadyExists,
		NotFound:      r.NotFound,
		Errors:        r.Errors,
	}
}

// Options configures a Renamer.
type Options struct {
	// DryRun plans the pass against the in-memory directory index and
	// leaves the filesystem untouched.
	DryRun bool
	// Recorder receives applied renames, collisions, misses and errors.
	// Nil records nothing.
	Recorder Recorder
	// Observer receives every event. Nil discards them.
	Observer Observer
}

// Renamer performs rename passes over one configured dataset.
type Renamer struct {
	cfg             *config.Configuration
	opts            Options
	recorder        Recorder
	captureIdentity bool
}

// NewRenamer creates a Renamer for cfg.
func NewRenamer(cfg *config.Configuration, opts Options) *Renamer {
	r := &Renamer{cfg: cfg, opts: opts, recorder: nopRecorder{}}
	if opts.Recorder != nil && !opts.DryRun {
		r.recorder = opts.Recorder
		r.captureIdentity = true
	}
	return r
}

// pass carries the state of one Run.
type pass struct {
	*Renamer
	index  *scanner.Index
	result *Result
	// vacated holds names a dry run has renamed away in the index but
	// that still exist on disk.
	vacated map[string]bool
}

// Run performs one pass. It fails before touching any file when the
// metadata file or the target directory is missing. A cancelled ctx
// stops the pass at the next row boundary; renames already applied stay.
// The returned Result is non-nil whenever the pass started.
func (r *Renamer) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.CheckPrerequisites(); err != nil {
		return nil, err
	}

	reader, err := metadata.Open(r.cfg.MetadataFile, r.cfg.MetadataOptions())
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer reader.Close()

	index, err := scanner.NewIndex(r.cfg.TargetDirectory, r.cfg.ScanOptions())
	if err != nil {
		return nil, fmt.Errorf("scan target directory: %w", err)
	}

	p := &pass{
		Renamer: r,
		index:   index,
		result:  &Result{DryRun: r.opts.DryRun},
		vacated: make(map[string]bool),
	}

	for {
		if err := ctx.Err(); err != nil {
			return p.result, err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *metadata.RowError
			if !errors.As(err, &rowErr) {
				return p.result, err
			}
			p.result.MalformedRows++
			p.emit(Event{Kind: EventMalformedRow, Line: rowErr.Line, Err: rowErr})
			continue
		}

		if err := p.processRow(row); err != nil {
			return p.result, err
		}
	}

	return p.result, nil
}

// processRow tries every shape for one row. Only recorder failures are
// returned; everything else is counted and reported.
func (p *pass) processRow(row *metadata.Row) error {
	p.result.Rows++

	if !row.Valid() {
		p.result.SkippedRows++
		p.emit(Event{Kind: EventRowSkipped, Line: row.Line, ISIN: row.ISIN, Company: row.CompanyName})
		return nil
	}

	matched := false
	for _, shape := range matcher.Ordered() {
		file, ok := matcher.Find(p.index.Files(), row.ISIN, shape)
		if !ok {
			continue
		}
		matched = true
		if err := p.tryShape(row, shape, file); err != nil {
			return err
		}
	}

	if !matched {
		p.result.NotFound++
		p.emit(Event{Kind: EventNoMatch, Line: row.Line, ISIN: row.ISIN, Company: row.CompanyName})
		return p.recorder.RecordNoMatch(rowDetails(row, nil))
	}
	return nil
}

func (p *pass) tryShape(row *metadata.Row, shape matcher.Shape, file scanner.FileEntry) error {
	target := normalizer.TargetFilename(row.CompanyName, shape.TargetSuffix())
	destPath := filepath.Join(p.index.Directory(), target)
	details := rowDetails(row, &shape)

	ev := Event{
		Line:        row.Line,
		ISIN:        row.ISIN,
		Company:     row.CompanyName,
		Shape:       shape,
		Source:      file.Name,
		Destination: target,
		DryRun:      p.opts.DryRun,
	}

	if p.opts.DryRun {
		if p.targetTaken(target, destPath) {
			p.alreadyExists(ev)
			return nil
		}
		p.index.Rename(file.Name, target)
		p.vacated[file.Name] = true
		delete(p.vacated, target)
		p.renamed(ev)
		return nil
	}

	if _, err := organizer.Rename(file.FullPath, destPath); err != nil {
		if organizer.IsDestinationExists(err) {
			p.alreadyExists(ev)
			return p.recorder.RecordAlreadyExists(file.FullPath, destPath, details)
		}
		ev.Kind = EventError
		ev.Err = err
		p.result.Errors++
		p.addOperation(ev)
		return p.recorder.RecordError(file.FullPath, errorType(err), err.Error(), "rename")
	}

	p.index.Rename(file.Name, target)
	p.renamed(ev)

	// Without an identity, undo skips the content check for this file.
	var identity *audit.FileIdentity
	if p.captureIdentity {
		identity, _ = audit.CaptureIdentity(destPath)
	}
	return p.recorder.RecordRename(file.FullPath, destPath, identity, details)
}

// targetTaken reports whether a dry run would find target occupied.
func (p *pass) targetTaken(target, destPath string) bool {
	if p.index.Contains(target) {
		return true
	}
	if p.vacated[target] {
		return false
	}
	return organizer.FileExists(destPath)
}

func (p *pass) renamed(ev Event) {
	ev.Kind = EventRenamed
	p.result.Renamed++
	p.addOperation(ev)
}

func (p *pass) alreadyExists(ev Event) {
	ev.Kind = EventAlreadyExists
	p.result.AlreadyExists++
	p.addOperation(ev)
}

// addOperation appends the operation to the result and emits the event.
func (p *pass) addOperation(ev Event) {
	p.result.Operations = append(p.result.Operations, Operation{
		Line:        ev.Line,
		ISIN:        ev.ISIN,
		Shape:       ev.Shape,
		Source:      ev.Source,
		Destination: ev.Destination,
		Kind:        ev.Kind,
	})
	p.emit(ev)
}

func (p *pass) emit(ev Event) {
	ev.DryRun = p.opts.DryRun
	if p.opts.Observer != nil {
		p.opts.Observer(ev)
	}
}

func rowDetails(row *metadata.Row, shape *matcher.Shape) map[string]string {
	details := map[string]string{
		audit.MetaISIN:    row.ISIN,
		audit.MetaCompany: row.CompanyName,
		audit.MetaLine:    strconv.Itoa(row.Line),
	}
	if shape != nil {
		details[audit.MetaShape] = shape.String()
	}
	return details
}

func errorType(err error) string {
	var moveErr *organizer.MoveError
	if errors.As(err, &moveErr) {
		return string(moveErr.Type)
	}
	return "RENAME_FAILED"
}
