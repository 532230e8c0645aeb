package enrich

import (
	"unicode"
	"unicode/utf8"
)

// FirstSentence returns the shortest leading run of text that ends in a
// period followed by whitespace, period included. Text with no such boundary
// on its first line comes back unchanged. Abbreviations are not special-cased:
// "Dr. Smith" ends at "Dr.".
func FirstSentence(text string) string {
	for i, r := range text {
		if r == '\n' {
			return text
		}
		if r != '.' || i == 0 {
			continue
		}
		next, size := utf8.DecodeRuneInString(text[i+1:])
		if size > 0 && unicode.IsSpace(next) {
			return text[:i+1]
		}
	}
	return text
}
