package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDigits(t *testing.T) {
	cases := map[string]string{
		"۱۴۰۳/۰۷/۲۵":        "1403/07/25",
		"٠١٢٣٤٥٦٧٨٩":        "0123456789",
		"۱۲.۵":              "12.5",
		"  17:30 ":          "17:30",
		"۱۲\u200c۳":         "123",
		"station ۵ ok":      "station 5 ok",
		"":                  "",
		"already ascii 123": "already ascii 123",
	}
	for in, want := range cases {
		got := NormalizeDigits(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, NormalizeDigits(got), "idempotent for %q", in)
	}
}
