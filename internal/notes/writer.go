// Package notes turns bookmarks into notes in a vault, writing each
// bookmark at most once.
package notes

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

// Ledger records which bookmarks already have a note.
type Ledger interface {
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string, at time.Time, notePath string) error
}

// PreferencesSource supplies the current formatting preferences.
type PreferencesSource interface {
	Preferences() domain.Preferences
}

// WriteResult counts what a Write call did.
type WriteResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// Writer persists bookmarks as notes.
type Writer struct {
	vault  Vault
	ledger Ledger
	prefs  PreferencesSource
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a note writer.
func NewWriter(vault Vault, ledger Ledger, prefs PreferencesSource, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		vault:  vault,
		ledger: ledger,
		prefs:  prefs,
		logger: logger,
		now:    time.Now,
	}
}

// Write stores every bookmark not yet in the ledger. The ledger entry is
// written only after its note, so a failure part way leaves the rest to
// be retried. Failures are PROCESSING errors; the result counts what was
// done before the failure.
func (w *Writer) Write(ctx context.Context, bookmarks []domain.Bookmark) (WriteResult, error) {
	var res WriteResult
	prefs := w.prefs.Preferences()

	pending := make([]domain.Bookmark, 0, len(bookmarks))
	seen := make(map[string]struct{}, len(bookmarks))
	for _, b := range bookmarks {
		if _, dup := seen[b.ID]; dup {
			res.Skipped++
			continue
		}
		seen[b.ID] = struct{}{}

		done, err := w.ledger.IsProcessed(ctx, b.ID)
		if err != nil {
			return res, processing(err, "Could not read the import ledger")
		}
		if done {
			res.Skipped++
			continue
		}
		pending = append(pending, b)
	}

	if len(pending) == 0 {
		return res, nil
	}

	if prefs.StorageMethod == domain.StorageSingle {
		return w.writeSingle(ctx, prefs, pending, res)
	}
	return w.writeSeparate(ctx, prefs, pending, res)
}

func (w *Writer) writeSeparate(ctx context.Context, prefs domain.Preferences, pending []domain.Bookmark, res WriteResult) (WriteResult, error) {
	for _, b := range pending {
		notePath, created, err := w.createNote(ctx, prefs, b)
		if err != nil {
			return res, processing(err, "Could not write note for bookmark "+b.ID)
		}
		if err := w.ledger.MarkProcessed(ctx, b.ID, w.now(), notePath); err != nil {
			return res, processing(err, "Could not update the import ledger")
		}
		if created {
			res.Written++
		} else {
			res.Skipped++
		}
	}

	w.logger.Info("notes written", "method", domain.StorageSeparate, "written", res.Written, "skipped", res.Skipped)
	return res, nil
}

// createNote writes one note. A clashing name gets the bookmark ID
// appended; if that note exists too it was written by an earlier run
// whose ledger update was lost, and created is false.
func (w *Writer) createNote(ctx context.Context, prefs domain.Preferences, b domain.Bookmark) (notePath string, created bool, err error) {
	name := RenderFilename(prefs.FilenameTemplate, b)
	candidates := []string{notePathIn(prefs.Folder, name)}
	if !strings.Contains(name, Slugify(b.ID)) {
		candidates = append(candidates, notePathIn(prefs.Folder, name+"-"+Slugify(b.ID)))
	}

	content := Render(prefs.NoteTemplate, b)
	for _, p := range candidates {
		err := w.vault.Create(ctx, p, content)
		switch {
		case err == nil:
			return p, true, nil
		case errors.Is(err, ErrNoteExists):
			notePath = p
			continue
		default:
			return "", false, err
		}
	}

	w.logger.Warn("note already present; recording as imported", "bookmark_id", b.ID, "path", notePath)
	return notePath, false, nil
}

// writeSingle prepends this run's bookmarks, newest first, to one note.
func (w *Writer) writeSingle(ctx context.Context, prefs domain.Preferences, pending []domain.Bookmark, res WriteResult) (WriteResult, error) {
	notePath := notePathIn(prefs.Folder, SingleNoteName)

	blocks := make([]string, len(pending))
	for i, b := range pending {
		blocks[i] = strings.TrimSpace(Render(prefs.NoteTemplate, b))
	}
	block := strings.Join(blocks, "\n\n---\n\n")

	exists, err := w.vault.Exists(ctx, notePath)
	if err != nil {
		return res, processing(err, "Could not open "+notePath)
	}
	if exists {
		existing, err := w.vault.Read(ctx, notePath)
		if err != nil {
			return res, processing(err, "Could not read "+notePath)
		}
		if strings.TrimSpace(existing) != "" {
			block += "\n\n---\n\n" + existing
		}
		err = w.vault.Modify(ctx, notePath, block)
		if err != nil {
			return res, processing(err, "Could not update "+notePath)
		}
	} else if err := w.vault.Create(ctx, notePath, block+"\n"); err != nil {
		return res, processing(err, "Could not create "+notePath)
	}

	at := w.now()
	for _, b := range pending {
		if err := w.ledger.MarkProcessed(ctx, b.ID, at, notePath); err != nil {
			return res, processing(err, "Could not update the import ledger")
		}
		res.Written++
	}

	w.logger.Info("notes written", "method", domain.StorageSingle, "written", res.Written, "skipped", res.Skipped)
	return res, nil
}

func notePathIn(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name + ".md"
	}
	return path.Join(folder, name+".md")
}

func processing(err error, msg string) error {
	return domainerrors.Wrap(err, domainerrors.CodeProcessing, msg)
}
