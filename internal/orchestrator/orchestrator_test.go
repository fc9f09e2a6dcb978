package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"isinrename/internal/config"
	"isinrename/internal/output"
)

const header = "ISIN;Ticker;Name;Sector\n"

// newDataset writes a metadata table and the given files (name -> content)
// and returns a configuration pointing at them.
func newDataset(t *testing.T, rows string, files map[string]string) *config.Configuration {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.MetadataFile = filepath.Join(root, "2025-09-23_data_EN.csv")
	cfg.TargetDirectory = filepath.Join(root, "2025-09-23_EN")

	if err := os.WriteFile(cfg.MetadataFile, []byte(header+rows), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(cfg.TargetDirectory, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(cfg.TargetDirectory, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &cfg
}

// listDir returns the directory contents as name -> content.
func listDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		out[e.Name()] = string(data)
	}
	return out
}

func run(t *testing.T, cfg *config.Configuration, opts Options) *Result {
	t.Helper()
	result, err := NewRenamer(cfg, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result
}

func TestRun_DeutscheBank(t *testing.T) {
	cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;Financials\n", map[string]string{
		"DE0005140008-EUR-DE-en.pdf": "english",
		"DE0005140008-EUR-DE-de.pdf": "german",
	})

	result := run(t, cfg, Options{})

	if result.Renamed != 2 || result.AlreadyExists != 0 || result.NotFound != 0 || result.Errors != 0 {
		t.Errorf("Unexpected counters %+v", result)
	}
	want := map[string]string{
		"DEUTSCHE BANK_EN.pdf": "english",
		"DEUTSCHE BANK_DE.pdf": "german",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}

	stats, err := CollectDirectoryStats(cfg.TargetDirectory, cfg.ScanOptions())
	if err != nil {
		t.Fatal(err)
	}
	if *stats != (DirectoryStats{TotalPDFs: 2, English: 1, German: 1}) {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestRun_Idempotent(t *testing.T) {
	cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;Financials\n", map[string]string{
		"DE0005140008-EUR-DE-en.pdf": "english",
		"DE0005140008.pdf":           "plain",
	})

	run(t, cfg, Options{})
	after := listDir(t, cfg.TargetDirectory)

	second := run(t, cfg, Options{})
	if second.Renamed != 0 || second.AlreadyExists != 0 || second.Errors != 0 {
		t.Errorf("Second run changed something: %+v", second)
	}
	if second.NotFound != 1 {
		t.Errorf("Expected the row to find nothing on the second run, got %+v", second)
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, after) {
		t.Errorf("Directory changed on second run: %v -> %v", after, got)
	}
}

func TestRun_EveryShapeTried(t *testing.T) {
	cfg := newDataset(t, "US0378331005;AAPL;Apple Inc;Technology\n", map[string]string{
		"US0378331005-USD-US-en.pdf": "en",
		"US0378331005-USD-US-de.pdf": "de",
		"US0378331005.pdf":           "exact",
		"US0378331005-USD-US.pdf":    "prefix",
	})

	result := run(t, cfg, Options{})

	// Exact and prefix share the ".pdf" target, so the prefix file finds
	// its target taken.
	if result.Renamed != 3 || result.AlreadyExists != 1 {
		t.Errorf("Unexpected counters %+v", result)
	}
	want := map[string]string{
		"Apple Inc_EN.pdf":        "en",
		"Apple Inc_DE.pdf":        "de",
		"Apple Inc.pdf":           "exact",
		"US0378331005-USD-US.pdf": "prefix",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}

	var shapes []string
	for _, op := range result.Operations {
		shapes = append(shapes, op.Shape.String())
	}
	if strings.Join(shapes, ",") != "EN,DE,EXACT,PREFIX" {
		t.Errorf("Shapes tried in order %v", shapes)
	}
}

func TestRun_FirstMatchInNameOrder(t *testing.T) {
	cfg := newDataset(t, "US0378331005;AAPL;Apple Inc;Technology\n", map[string]string{
		"US0378331005-B-en.pdf": "b",
		"US0378331005-A-en.pdf": "a",
	})

	result := run(t, cfg, Options{})

	if result.Renamed != 1 {
		t.Fatalf("Expected one rename, got %+v", result)
	}
	got := listDir(t, cfg.TargetDirectory)
	if got["Apple Inc_EN.pdf"] != "a" || got["US0378331005-B-en.pdf"] != "b" {
		t.Errorf("Expected the lexically first candidate renamed, got %v", got)
	}
}

func TestRun_InvalidRowsSkipped(t *testing.T) {
	cfg := newDataset(t,
		"  ;X;Nameless ISIN;\n"+
			"US0378331005;AAPL;   ;Technology\n"+
			";;;\n",
		map[string]string{"US0378331005.pdf": "apple"},
	)

	var events []Event
	result := run(t, cfg, Options{Observer: func(ev Event) { events = append(events, ev) }})

	if result.Rows != 3 || result.SkippedRows != 3 {
		t.Errorf("Unexpected row counters %+v", result)
	}
	if result.Renamed != 0 || result.AlreadyExists != 0 || result.NotFound != 0 {
		t.Errorf("Skipped rows must not touch counters: %+v", result)
	}
	if _, ok := listDir(t, cfg.TargetDirectory)["US0378331005.pdf"]; !ok {
		t.Error("File of a skipped row was renamed")
	}
	for _, ev := range events {
		if ev.Kind != EventRowSkipped {
			t.Errorf("Unexpected event %+v", ev)
		}
	}
}

func TestRun_NeverClobbers(t *testing.T) {
	cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;Financials\n", map[string]string{
		"DE0005140008-EUR-DE-en.pdf": "new",
		"DEUTSCHE BANK_EN.pdf":       "old",
	})

	var warnings []Event
	result := run(t, cfg, Options{Observer: func(ev Event) {
		if ev.Kind == EventAlreadyExists {
			warnings = append(warnings, ev)
		}
	}})

	if result.Renamed != 0 || result.AlreadyExists != 1 || result.Errors != 0 {
		t.Errorf("Unexpected counters %+v", result)
	}
	want := map[string]string{
		"DE0005140008-EUR-DE-en.pdf": "new",
		"DEUTSCHE BANK_EN.pdf":       "old",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}
	if len(warnings) != 1 || warnings[0].Destination != "DEUTSCHE BANK_EN.pdf" {
		t.Errorf("Expected one already-exists event, got %+v", warnings)
	}
}

func TestRun_SameCompanyTwoRows(t *testing.T) {
	cfg := newDataset(t,
		"DE0005140008;DBK;Deutsche Bank;Financials\n"+
			"DE0005140009;DBK2;Deutsche Bank;Financials\n",
		map[string]string{
			"DE0005140008.pdf": "first",
			"DE0005140009.pdf": "second",
		},
	)

	result := run(t, cfg, Options{})

	if result.Renamed != 1 || result.AlreadyExists != 1 {
		t.Errorf("Unexpected counters %+v", result)
	}
	got := listDir(t, cfg.TargetDirectory)
	if got["Deutsche Bank.pdf"] != "first" || got["DE0005140009.pdf"] != "second" {
		t.Errorf("Unexpected directory %v", got)
	}
}

func TestRun_SanitizesCompanyName(t *testing.T) {
	cfg := newDataset(t,
		`US00206R1023;T;AT&T: "Inc"/<X>;Telecom`+"\n"+
			"US5801351017;MCD;McDonald's Corp.;Consumer\n",
		map[string]string{
			"US00206R1023-USD-US-en.pdf": "att",
			"US5801351017-USD-US-de.pdf": "mcd",
		},
	)

	run(t, cfg, Options{})

	want := map[string]string{
		"AT&T_ _Inc___X__EN.pdf":  "att",
		"McDonald_s Corp._DE.pdf": "mcd",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}
}

func TestRun_NotFoundCountsRowsWithoutMatch(t *testing.T) {
	cfg := newDataset(t,
		"DE0005140008;DBK;DEUTSCHE BANK;Financials\n"+
			"US0378331005;AAPL;Apple Inc;Technology\n"+
			"NL0000235190;AIR;Airbus;Industrials\n",
		map[string]string{"DE0005140008.pdf": "dbk"},
	)

	var misses []string
	result := run(t, cfg, Options{Observer: func(ev Event) {
		if ev.Kind == EventNoMatch {
			misses = append(misses, ev.ISIN)
		}
	}})

	if result.Renamed != 1 || result.NotFound != 2 {
		t.Errorf("Unexpected counters %+v", result)
	}
	sort.Strings(misses)
	if strings.Join(misses, ",") != "NL0000235190,US0378331005" {
		t.Errorf("Unexpected misses %v", misses)
	}
}

func TestRun_CaseSensitiveMatching(t *testing.T) {
	cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;Financials\n", map[string]string{
		"de0005140008-EUR-DE-en.pdf": "lower isin",
		"DE0005140008-EUR-DE-EN.pdf": "upper suffix",
		"DE0005140008.PDF":           "upper extension",
	})

	result := run(t, cfg, Options{})

	// "-EN.pdf" is not the English suffix, so that file has the prefix
	// shape. The other two do not match at all.
	if result.Renamed != 1 || len(result.Operations) != 1 || result.Operations[0].Shape.String() != "PREFIX" {
		t.Fatalf("Unexpected operations %+v", result.Operations)
	}
	want := map[string]string{
		"de0005140008-EUR-DE-en.pdf": "lower isin",
		"DEUTSCHE BANK.pdf":          "upper suffix",
		"DE0005140008.PDF":           "upper extension",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}
}

func TestRun_MissingPrerequisites(t *testing.T) {
	t.Run("metadata file", func(t *testing.T) {
		cfg := newDataset(t, "", map[string]string{"DE0005140008.pdf": "x"})
		os.Remove(cfg.MetadataFile)

		_, err := NewRenamer(cfg, Options{}).Run(context.Background())
		if !config.IsPrerequisiteMissing(err) || !strings.Contains(err.Error(), "metadata file not found") {
			t.Errorf("Expected missing metadata file, got %v", err)
		}
	})

	t.Run("target directory", func(t *testing.T) {
		cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;\n", nil)
		os.Remove(cfg.TargetDirectory)

		_, err := NewRenamer(cfg, Options{}).Run(context.Background())
		if !config.IsPrerequisiteMissing(err) || !strings.Contains(err.Error(), "PDF directory not found") {
			t.Errorf("Expected missing directory, got %v", err)
		}
	})
}

func TestRun_CancelledContextStopsBeforeRows(t *testing.T) {
	cfg := newDataset(t, "DE0005140008;DBK;DEUTSCHE BANK;Financials\n", map[string]string{
		"DE0005140008.pdf": "x",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRenamer(cfg, Options{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result == nil || result.Rows != 0 {
		t.Errorf("Expected no rows processed, got %+v", result)
	}
	if _, ok := listDir(t, cfg.TargetDirectory)["DE0005140008.pdf"]; !ok {
		t.Error("File renamed after cancellation")
	}
}

func TestRun_HeaderLabelsLocateColumns(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.MetadataFile = filepath.Join(root, "table.csv")
	cfg.TargetDirectory = root
	table := "Name;Sector;ISIN\nDEUTSCHE BANK;Financials;DE0005140008\n"
	if err := os.WriteFile(cfg.MetadataFile, []byte(table), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "DE0005140008.pdf"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	result := run(t, &cfg, Options{})
	if result.Renamed != 1 {
		t.Errorf("Expected the columns found by label, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(root, "DEUTSCHE BANK.pdf")); err != nil {
		t.Error(err)
	}
}

func TestConsoleObserver(t *testing.T) {
	cfg := newDataset(t,
		"DE0005140008;DBK;DEUTSCHE BANK;Financials\n"+
			"US0378331005;AAPL;Apple Inc;Technology\n",
		map[string]string{
			"DE0005140008-EUR-DE-en.pdf": "new",
			"DE0005140008-EUR-DE-de.pdf": "new",
			"DEUTSCHE BANK_DE.pdf":       "old",
		},
	)

	var stdout bytes.Buffer
	out := output.New(output.Config{Writer: &stdout, ErrWriter: &stdout})
	run(t, cfg, Options{Observer: ConsoleObserver(out)})

	want := "success: renamed DE0005140008-EUR-DE-en.pdf -> DEUTSCHE BANK_EN.pdf\n" +
		"warning: already exists: DEUTSCHE BANK_DE.pdf (kept DE0005140008-EUR-DE-de.pdf)\n"
	if stdout.String() != want {
		t.Errorf("Console output:\n%s\nwant:\n%s", stdout.String(), want)
	}
}

func TestRun_QuoteInCompanyNameKeepsLaterRows(t *testing.T) {
	cfg := newDataset(t,
		"US0000000001;AAA;\"Quoted\" Holdings;Tech\n"+
			"DE0005140008;DBK;DEUTSCHE BANK;Banks\n",
		map[string]string{
			"US0000000001.pdf":           "quoted",
			"DE0005140008-EUR-DE-en.pdf": "english",
		})

	result := run(t, cfg, Options{})

	if result.Rows != 2 || result.Renamed != 2 || result.MalformedRows != 0 {
		t.Errorf("Unexpected counters %+v", result)
	}
	want := map[string]string{
		"_Quoted_ Holdings.pdf": "quoted",
		"DEUTSCHE BANK_EN.pdf":  "english",
	}
	if got := listDir(t, cfg.TargetDirectory); !reflect.DeepEqual(got, want) {
		t.Errorf("Directory = %v, want %v", got, want)
	}
}
