package domain

import "time"

// Bookmark is one normalized bookmarked post. Immutable once built.
type Bookmark struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	AuthorName     string    `json:"author_name"`
	MediaURLs      []string  `json:"media_urls,omitempty"`
	SourceURL      string    `json:"source_url"`
}

// PostURL builds the public URL of a post. Unknown authors fall back to
// the username-agnostic form.
func PostURL(username, postID string) string {
	if username == "" {
		return "https://x.com/i/web/status/" + postID
	}
	return "https://x.com/" + username + "/status/" + postID
}
