package domain

import "time"

// Note storage methods.
const (
	StorageSeparate = "separate"
	StorageSingle   = "single"
)

// Preferences are the user's note formatting choices.
type Preferences struct {
	StorageMethod    string `json:"storage_method"`
	Folder           string `json:"folder"`
	FilenameTemplate string `json:"filename_template"`
	NoteTemplate     string `json:"note_template,omitempty"`
	AutoSync         bool   `json:"auto_sync"`
}

// Settings is the persisted settings blob. It is loaded and saved as one
// document.
type Settings struct {
	Credentials       Credentials      `json:"credentials"`
	Rate              RateState        `json:"rate"`
	Cursor            PaginationCursor `json:"cursor"`
	LastSyncTimestamp time.Time        `json:"last_sync_timestamp,omitzero"`
	Preferences       Preferences      `json:"preferences"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewSettings creates a settings blob seeded with the given preferences.
func NewSettings(prefs Preferences, rateWindow time.Duration) *Settings {
	return &Settings{
		Rate:        RateState{RateWindow: rateWindow},
		Preferences: prefs,
		UpdatedAt:   time.Now(),
	}
}
