package download

import (
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Maximum base name length before the part suffix and extension.
const maxFilenameLength = 60

var (
	nonPrintableASCII = regexp.MustCompile(`[^\x20-\x7E]`)
	reservedChars     = regexp.MustCompile(`[<>:"/\\|?*#]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	nonWordChars      = regexp.MustCompile(`[^\w.]`)
	underscoreRun     = regexp.MustCompile(`_+`)
	edgeUnderscores   = regexp.MustCompile(`^_+|_+$`)

	// Folds "café" to "cafe" before the ASCII filter drops what is left.
	diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizeFilename maps an arbitrary video title to a filesystem-safe
// base name: printable ASCII only, underscores for whitespace, reserved
// characters stripped, length-capped. The function is idempotent.
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(diacriticFold, name)
	if err != nil {
		folded = name
	}

	s := nonPrintableASCII.ReplaceAllString(folded, "")
	s = reservedChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = nonWordChars.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = edgeUnderscores.ReplaceAllString(s, "")

	if len(s) > maxFilenameLength {
		s = s[:maxFilenameLength]
		s = edgeUnderscores.ReplaceAllString(s, "")
	}
	if s == "" {
		return "video"
	}
	return s
}
