package output

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	rendered := RenderTable(
		[]string{"Run", "Renamed"},
		[][]string{{"a1b2", "12"}, {"c3"}},
		[]Alignment{AlignLeft, AlignRight},
	)

	for _, want := range []string{"Run", "Renamed", "a1b2", "12", "c3", "╭", "╯"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("expected %q in table:\n%s", want, rendered)
		}
	}
	if lines := strings.Split(rendered, "\n"); len(lines) != 6 {
		t.Errorf("expected 6 lines (border, header, separator, 2 rows, border), got %d:\n%s", len(lines), rendered)
	}
}

func TestRenderTable_NoHeaders(t *testing.T) {
	if got := RenderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestCountTable(t *testing.T) {
	out, buf, _ := newBuffered(false, false)

	out.CountTable("Outcome", []CountRow{
		{Label: "Renamed", Count: 2},
		{Label: "Already exists", Count: 0},
	})

	output := buf.String()
	for _, want := range []string{"Outcome", "Count", "Renamed", "Already exists", "2", "0"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in:\n%s", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("expected a trailing newline")
	}
}
