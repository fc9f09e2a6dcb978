package normalizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Deutsche Bank", "Deutsche Bank"},
		{"slash", "AT&T / Inc", "AT&T _ Inc"},
		{"apostrophe", "McDonald's", "McDonald_s"},
		{"every illegal character", `a/b\c:d*e?f"g<h>i|j'k`, "a_b_c_d_e_f_g_h_i_j_k"},
		{"diacritics kept", "Société Générale", "Société Générale"},
		{"case and inner spaces kept", "  L'ORÉAL  SA ", "  L_ORÉAL  SA "},
		{"other punctuation kept", "Berkshire Hathaway Inc. (Class B), 100%", "Berkshire Hathaway Inc. (Class B), 100%"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTargetFilename(t *testing.T) {
	if got := TargetFilename("DEUTSCHE BANK", "_EN.pdf"); got != "DEUTSCHE BANK_EN.pdf" {
		t.Errorf("got %q", got)
	}
	if got := TargetFilename("A/S Norden", ".pdf"); got != "A_S Norden.pdf" {
		t.Errorf("got %q", got)
	}
}

// Property: Sanitization Removes Illegal Characters And Preserves The Rest

func genCompanyName() gopter.Gen {
	return gen.SliceOf(gen.OneGenOf(
		gen.Rune(),
		gen.OneConstOf('/', '\\', ':', '*', '?', '"', '<', '>', '|', '\''),
	)).Map(func(runes []rune) string {
		return string(runes)
	}).SuchThat(func(s string) bool {
		return utf8.ValidString(s)
	})
}

func TestSanitizationCorrectness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("No illegal characters remain", prop.ForAll(
		func(name string) bool {
			return !strings.ContainsAny(SanitizeName(name), IllegalCharacters)
		},
		genCompanyName(),
	))

	properties.Property("Every other character is preserved verbatim and in order", prop.ForAll(
		func(name string) bool {
			in := []rune(name)
			out := []rune(SanitizeName(name))
			if len(in) != len(out) {
				t.Logf("rune count changed: %d -> %d", len(in), len(out))
				return false
			}
			for i := range in {
				if strings.ContainsRune(IllegalCharacters, in[i]) {
					if string(out[i]) != Replacement {
						return false
					}
					continue
				}
				if in[i] != out[i] {
					t.Logf("rune %d changed: %q -> %q", i, in[i], out[i])
					return false
				}
			}
			return true
		},
		genCompanyName(),
	))

	properties.TestingRun(t)
}
