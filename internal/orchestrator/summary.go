package orchestrator

import (
	"fmt"

	"isinrename/internal/classifier"
	"isinrename/internal/output"
	"isinrename/internal/scanner"
)

// DirectoryStats counts the PDF files of the target directory by name.
type DirectoryStats struct {
	TotalPDFs  int
	NoLanguage int // Neither _EN.pdf nor _DE.pdf
	English    int // _EN.pdf
	German     int // _DE.pdf
	ISINNamed  int // Still named after an ISIN
}

// CollectDirectoryStats classifies every PDF file in dir. Statistics are
// reporting only and never feed back into rename decisions.
func CollectDirectoryStats(dir string, opts scanner.ScanOptions) (*DirectoryStats, error) {
	files, err := scanner.ScanWithOptions(dir, opts)
	if err != nil {
		return nil, err
	}

	stats := &DirectoryStats{}
	for _, f := range files {
		stats.add(classifier.Classify(f.Name))
	}
	return stats, nil
}

func (s *DirectoryStats) add(c classifier.Classification) {
	if !c.IsPDF {
		return
	}
	s.TotalPDFs++
	switch c.Language {
	case classifier.LanguageEnglish:
		s.English++
	case classifier.LanguageGerman:
		s.German++
	default:
		s.NoLanguage++
	}
	if c.ISINNamed {
		s.ISINNamed++
	}
}

// PrintSummary writes the pass counters and, when stats is non-nil, the
// directory statistics.
func PrintSummary(out *output.Output, result *Result, stats *DirectoryStats) {
	title := "Rename summary"
	renamed := "Renamed"
	if result.DryRun {
		title = "Dry run summary (no files changed)"
		renamed = "Would rename"
	}

	out.Info("")
	out.Info("%s", title)
	counts := []output.CountRow{
		{Label: renamed, Count: result.Renamed},
		{Label: "Already exists", Count: result.AlreadyExists},
		{Label: "Not found", Count: result.NotFound},
	}
	if result.Errors > 0 {
		counts = append(counts, output.CountRow{Label: "Errors", Count: result.Errors})
	}
	out.CountTable("Outcome", counts)

	out.Verbose("Rows read: %d (skipped %d, malformed %d)",
		result.Rows, result.SkippedRows, result.MalformedRows)

	if stats != nil {
		PrintDirectoryStats(out, stats)
	}
}

// PrintDirectoryStats writes the directory statistics table.
func PrintDirectoryStats(out *output.Output, stats *DirectoryStats) {
	out.Info("")
	out.Info("Directory statistics")
	out.CountTable("PDF files", []output.CountRow{
		{Label: "Total", Count: stats.TotalPDFs},
		{Label: "No language suffix", Count: stats.NoLanguage},
		{Label: "English (_EN)", Count: stats.English},
		{Label: "German (_DE)", Count: stats.German},
		{Label: "Still ISIN-named", Count: stats.ISINNamed},
	})
}

// DescribeEvent formats an event as a console line and reports whether it
// is a warning.
func DescribeEvent(ev Event) (line string, warning bool) {
	prefix := ""
	if ev.DryRun {
		prefix = "[dry-run] "
	}
	switch ev.Kind {
	case EventRenamed:
		return fmt.Sprintf("%srenamed %s -> %s", prefix, ev.Source, ev.Destination), false
	case EventAlreadyExists:
		return fmt.Sprintf("%salready exists: %s (kept %s)", prefix, ev.Destination, ev.Source), true
	case EventError:
		return fmt.Sprintf("%scould not rename %s -> %s: %v", prefix, ev.Source, ev.Destination, ev.Err), true
	case EventMalformedRow:
		return fmt.Sprintf("malformed metadata row skipped: %v", ev.Err), true
	case EventNoMatch:
		return fmt.Sprintf("no file found for %s (%s)", ev.ISIN, ev.Company), false
	case EventRowSkipped:
		return fmt.Sprintf("line %d skipped: missing ISIN or company name", ev.Line), false
	}
	return "", false
}

// ConsoleObserver prints events the way a rename pass reports them:
// renames as success lines, collisions and errors as warnings, and
// misses and skipped rows in verbose mode only.
func ConsoleObserver(out *output.Output) Observer {
	return func(ev Event) {
		line, warning := DescribeEvent(ev)
		switch {
		case line == "":
		case ev.Kind == EventRenamed:
			out.Success("%s", line)
		case warning:
			out.Warn("%s", line)
		default:
			out.Verbose("%s", line)
		}
	}
}
