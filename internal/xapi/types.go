package xapi

// User is the authenticated account.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Page is one page of the bookmarks list, as the provider returned it.
type Page struct {
	Posts     []RawPost
	Users     []User
	Media     []Media
	NextToken string
}

// RawPost is a bookmarked post before normalization.
type RawPost struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	CreatedAt   string       `json:"created_at"`
	AuthorID    string       `json:"author_id"`
	Attachments *Attachments `json:"attachments,omitempty"`
}

// Attachments lists the media keys of a post.
type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

// MediaKeys returns the keys of attached media, in post order.
func (p RawPost) MediaKeys() []string {
	if p.Attachments == nil {
		return nil
	}
	return p.Attachments.MediaKeys
}

// Media is an attachment from the includes side list.
type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// Raw API response types (internal)

type rawUserResponse struct {
	Data   *User        `json:"data"`
	Errors []rawProblem `json:"errors,omitempty"`
}

type rawBookmarksResponse struct {
	Data     []RawPost   `json:"data"`
	Includes rawIncludes `json:"includes"`
	Meta     rawMeta     `json:"meta"`
}

type rawIncludes struct {
	Users []User  `json:"users"`
	Media []Media `json:"media"`
}

type rawMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// rawProblem covers both the v2 problem shape and the legacy
// {"errors":[{"code":89,...}]} shape.
type rawProblem struct {
	Title   string `json:"title,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type rawErrorBody struct {
	rawProblem
	Errors []rawProblem `json:"errors,omitempty"`
}
