package events

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// previewRunes bounds the spoken text copied into speak events.
const previewRunes = 120

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// TextPreview masks emails, card numbers and phone numbers in text and
// truncates it for storage in an event detail. masked reports whether any
// pattern matched.
func TextPreview(text string) (preview string, masked bool) {
	out := strings.TrimSpace(text)
	for _, r := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[email]"},
		// Cards before phones, or long card numbers read as phone numbers.
		{cardPattern, "[card]"},
		{phonePattern, "[phone]"},
	} {
		next := r.pattern.ReplaceAllString(out, r.marker)
		masked = masked || next != out
		out = next
	}

	if utf8.RuneCountInString(out) > previewRunes {
		runes := []rune(out)
		out = string(runes[:previewRunes]) + "…"
	}
	return out, masked
}
