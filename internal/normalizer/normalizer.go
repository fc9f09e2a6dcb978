// Package normalizer derives rename targets from company names.
package normalizer

import "strings"

// IllegalCharacters lists every character replaced by SanitizeName.
const IllegalCharacters = `/\:*?"<>|'`

// Replacement is written in place of each illegal character.
const Replacement = "_"

var sanitizer = newSanitizer()

func newSanitizer() *strings.Replacer {
	pairs := make([]string, 0, 2*len(IllegalCharacters))
	for _, c := range IllegalCharacters {
		pairs = append(pairs, string(c), Replacement)
	}
	return strings.NewReplacer(pairs...)
}

// SanitizeName replaces each character of IllegalCharacters with an
// underscore. Case, whitespace and any other character are kept as is;
// characters that are illegal on some other filesystem are not handled.
func SanitizeName(name string) string {
	return sanitizer.Replace(name)
}

// TargetFilename returns the rename target for a company name:
// the sanitized name followed by suffix (e.g. "_EN.pdf").
func TargetFilename(companyName, suffix string) string {
	return SanitizeName(companyName) + suffix
}
