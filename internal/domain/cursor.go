package domain

// PaginationCursor tracks progress through a paged pass over the bookmark
// list. NextToken is only set while InitialSyncComplete is false.
type PaginationCursor struct {
	NextToken           string `json:"next_token,omitempty"`
	InitialSyncComplete bool   `json:"initial_sync_complete"`
	LastPageIndex       int    `json:"last_page_index"`
}

// Resuming reports whether a saved continuation token should be used.
func (c PaginationCursor) Resuming() bool {
	return !c.InitialSyncComplete && c.NextToken != ""
}

// Advance records a fetched page. A continuation token keeps the pass open
// unless the page already reached the incremental cutoff; anything else
// completes the pass.
func (c *PaginationCursor) Advance(nextToken string, reachedCutoff bool) {
	c.LastPageIndex++
	if nextToken != "" && !reachedCutoff {
		c.NextToken = nextToken
		c.InitialSyncComplete = false
		return
	}
	c.NextToken = ""
	c.InitialSyncComplete = true
}

// Reset forgets all pagination progress so a full import starts over.
func (c *PaginationCursor) Reset() {
	*c = PaginationCursor{}
}
