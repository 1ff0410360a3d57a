package fetcher

import (
	"time"

	"golang.org/x/net/html"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/xapi"
)

// Normalize turns a raw page into bookmarks in page order. When cutoff is
// non-zero, posts created at or before it are dropped and reachedCutoff
// reports that at least one was.
func Normalize(page *xapi.Page, cutoff time.Time) (bookmarks []domain.Bookmark, reachedCutoff bool) {
	if page == nil {
		return nil, false
	}

	users := make(map[string]xapi.User, len(page.Users))
	for _, u := range page.Users {
		users[u.ID] = u
	}
	media := make(map[string]xapi.Media, len(page.Media))
	for _, m := range page.Media {
		media[m.MediaKey] = m
	}

	bookmarks = make([]domain.Bookmark, 0, len(page.Posts))
	for _, p := range page.Posts {
		createdAt := parseCreatedAt(p.CreatedAt)
		if !cutoff.IsZero() && !createdAt.IsZero() && !createdAt.After(cutoff) {
			reachedCutoff = true
			continue
		}

		author := users[p.AuthorID]
		bookmarks = append(bookmarks, domain.Bookmark{
			ID:             p.ID,
			Text:           html.UnescapeString(p.Text),
			CreatedAt:      createdAt,
			AuthorID:       p.AuthorID,
			AuthorUsername: author.Username,
			AuthorName:     author.Name,
			MediaURLs:      mediaURLs(p.MediaKeys(), media),
			SourceURL:      domain.PostURL(author.Username, p.ID),
		})
	}
	return bookmarks, reachedCutoff
}

// mediaURLs prefers the direct URL and falls back to the preview image.
func mediaURLs(keys []string, media map[string]xapi.Media) []string {
	var urls []string
	for _, k := range keys {
		m, ok := media[k]
		if !ok {
			continue
		}
		switch {
		case m.URL != "":
			urls = append(urls, m.URL)
		case m.PreviewImageURL != "":
			urls = append(urls, m.PreviewImageURL)
		}
	}
	return urls
}

func parseCreatedAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
