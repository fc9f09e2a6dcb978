// Package classifier sorts the PDF files of a target directory into the
// buckets reported by the directory statistics.
package classifier

import (
	"regexp"
	"strings"
)

// Language is the language tag carried by a renamed report.
type Language string

const (
	LanguageNone    Language = "NONE"
	LanguageEnglish Language = "EN"
	LanguageGerman  Language = "DE"
)

// isinNamePattern matches names that still follow the ISIN-based scheme:
// a 12-character ISIN, optionally followed by "-..." before ".pdf".
var isinNamePattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9](-.*)?\.pdf$`)

// Classification describes one file of the target directory.
type Classification struct {
	IsPDF     bool
	Language  Language
	ISINNamed bool // Not yet renamed
}

// Classify inspects a file name. Files that are not "*.pdf" are reported
// with IsPDF false and no other attributes.
func Classify(filename string) Classification {
	if !strings.HasSuffix(filename, ".pdf") {
		return Classification{}
	}

	c := Classification{
		IsPDF:     true,
		Language:  LanguageNone,
		ISINNamed: isinNamePattern.MatchString(filename),
	}

	switch {
	case strings.HasSuffix(filename, "_EN.pdf"):
		c.Language = LanguageEnglish
	case strings.HasSuffix(filename, "_DE.pdf"):
		c.Language = LanguageGerman
	}

	return c
}

// LooksLikeISIN reports whether s has the shape of an ISIN. Used only for
// reporting; the renamer never validates ISINs.
func LooksLikeISIN(s string) bool {
	return isinNamePattern.MatchString(s + ".pdf")
}
