// Package matcher recognizes the ISIN-based report file names that
// isinrename can rename.
package matcher

import (
	"strings"

	"isinrename/internal/scanner"
)

// Shape identifies one of the recognized candidate file name patterns.
type Shape int

const (
	// English matches ISIN-<anything>-en.pdf.
	English Shape = iota
	// German matches ISIN-<anything>-de.pdf.
	German
	// Exact matches ISIN.pdf.
	Exact
	// Prefix matches ISIN-<anything>.pdf without a language suffix.
	Prefix
)

const (
	pdfExt    = ".pdf"
	enSuffix  = "-en.pdf"
	deSuffix  = "-de.pdf"
	separator = "-"
)

var ordered = []Shape{English, German, Exact, Prefix}

// Ordered returns the shapes in the priority order they are tried for a row.
func Ordered() []Shape {
	out := make([]Shape, len(ordered))
	copy(out, ordered)
	return out
}

// String returns the short label used in console output and audit metadata.
func (s Shape) String() string {
	switch s {
	case English:
		return "EN"
	case German:
		return "DE"
	case Exact:
		return "EXACT"
	case Prefix:
		return "PREFIX"
	default:
		return "UNKNOWN"
	}
}

// TargetSuffix returns what follows the sanitized company name in the
// renamed file.
func (s Shape) TargetSuffix() string {
	switch s {
	case English:
		return "_EN.pdf"
	case German:
		return "_DE.pdf"
	default:
		return pdfExt
	}
}

// Matches reports whether filename has this shape for the given ISIN.
// Matching is case-sensitive.
func (s Shape) Matches(filename, isin string) bool {
	if isin == "" {
		return false
	}
	switch s {
	case Exact:
		return filename == isin+pdfExt
	case English, German, Prefix:
		rest, ok := strings.CutPrefix(filename, isin+separator)
		if !ok {
			return false
		}
		switch s {
		case English:
			return strings.HasSuffix(rest, enSuffix)
		case German:
			return strings.HasSuffix(rest, deSuffix)
		default:
			// The language exclusion applies to the whole name, so
			// ISIN-en.pdf is neither English nor Prefix.
			return strings.HasSuffix(rest, pdfExt) &&
				!strings.HasSuffix(filename, enSuffix) &&
				!strings.HasSuffix(filename, deSuffix)
		}
	}
	return false
}

// Candidate is a file selected for one shape of one ISIN.
type Candidate struct {
	Shape Shape
	File  scanner.FileEntry
}

// Find returns the first file, in listing order, that has the given shape
// for isin.
func Find(files []scanner.FileEntry, isin string, shape Shape) (scanner.FileEntry, bool) {
	for _, f := range files {
		if shape.Matches(f.Name, isin) {
			return f, true
		}
	}
	return scanner.FileEntry{}, false
}

// FindAll returns at most one candidate per shape, in priority order.
func FindAll(files []scanner.FileEntry, isin string) []Candidate {
	var candidates []Candidate
	for _, shape := range ordered {
		if f, ok := Find(files, isin, shape); ok {
			candidates = append(candidates, Candidate{Shape: shape, File: f})
		}
	}
	return candidates
}
