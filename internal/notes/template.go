package notes

import (
	"regexp"
	"strings"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
)

// DefaultFilenameTemplate names one note per bookmark.
const DefaultFilenameTemplate = "{{date}}-{{username}}-{{id}}"

// DefaultNoteTemplate renders a bookmark with front matter.
const DefaultNoteTemplate = `---
id: "{{id}}"
author: "{{author_name}}"
username: "@{{author_username}}"
created: {{created_at}}
source: {{url}}
---

{{text}}

{{media}}

[View post]({{url}})
`

// SingleNoteName is the note that collects every bookmark in single mode.
const SingleNoteName = "Bookmarks"

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Render substitutes the bookmark's fields into tmpl. Unknown
// placeholders are left as written.
func Render(tmpl string, b domain.Bookmark) string {
	if tmpl == "" {
		tmpl = DefaultNoteTemplate
	}
	out := replacer(b).Replace(tmpl)
	return blankRuns.ReplaceAllString(out, "\n\n")
}

// RenderFilename renders a filename template and slugs the result. The
// bookmark ID is used when the template renders to nothing.
func RenderFilename(tmpl string, b domain.Bookmark) string {
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}
	name := Slugify(replacer(b).Replace(tmpl))
	if name == "" {
		name = Slugify(b.ID)
	}
	return name
}

func replacer(b domain.Bookmark) *strings.Replacer {
	date, createdAt := "", ""
	if !b.CreatedAt.IsZero() {
		date = b.CreatedAt.Format(time.DateOnly)
		createdAt = b.CreatedAt.Format(time.RFC3339)
	}

	return strings.NewReplacer(
		"{{id}}", b.ID,
		"{{text}}", b.Text,
		"{{date}}", date,
		"{{created_at}}", createdAt,
		"{{author_name}}", b.AuthorName,
		"{{author_username}}", b.AuthorUsername,
		"{{username}}", b.AuthorUsername,
		"{{author_id}}", b.AuthorID,
		"{{url}}", b.SourceURL,
		"{{media}}", mediaBlock(b.MediaURLs),
	)
}

func mediaBlock(urls []string) string {
	lines := make([]string, len(urls))
	for i, u := range urls {
		lines[i] = "![](" + u + ")"
	}
	return strings.Join(lines, "\n")
}
