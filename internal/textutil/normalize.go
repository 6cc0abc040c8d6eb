package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldASCII strips combining marks so "Amélie" becomes "Amelie".
func FoldASCII(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// VideoID derives a stable identifier for a video. An explicit id wins;
// otherwise the file stem is used.
func VideoID(explicit, path string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return SanitizeToken(FoldASCII(id))
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return SanitizeToken(FoldASCII(stem))
}
