package calendar

import "strings"

const (
	persianDigits      = "۰۱۲۳۴۵۶۷۸۹"
	arabicDigits       = "٠١٢٣٤٥٦٧٨٩"
	zeroWidthNonJoiner = "\u200c"
)

var digitReplacer = newDigitReplacer()

func newDigitReplacer() *strings.Replacer {
	pairs := make([]string, 0, 42)
	for _, alphabet := range []string{persianDigits, arabicDigits} {
		for i, r := range []rune(alphabet) {
			pairs = append(pairs, string(r), string(rune('0'+i)))
		}
	}
	pairs = append(pairs, zeroWidthNonJoiner, "")
	return strings.NewReplacer(pairs...)
}

// NormalizeDigits maps Persian and Arabic-Indic digits to ASCII, drops
// zero-width non-joiners and trims surrounding whitespace.
func NormalizeDigits(s string) string {
	return strings.TrimSpace(digitReplacer.Replace(s))
}
