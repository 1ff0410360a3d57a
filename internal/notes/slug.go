package notes

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches runs of characters not allowed in a note filename.
	unsafeFilename = regexp.MustCompile(`[^a-z0-9_]+`)

	multipleHyphens = regexp.MustCompile(`-+`)
)

// maxSlugLength keeps filenames well under common filesystem limits.
const maxSlugLength = 120

// Slugify converts a string to a filename-safe slug.
// "2026-07-01-XDevelopers-1800" -> "2026-07-01-xdevelopers-1800".
// "Café Résumé" -> "cafe-resume".
func Slugify(s string) string {
	// Decompose accented characters, then drop what is left outside ASCII.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = unsafeFilename.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	return s
}
