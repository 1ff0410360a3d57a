package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Vault stores notes under slash-separated paths relative to its root.
type Vault interface {
	Exists(ctx context.Context, notePath string) (bool, error)
	Read(ctx context.Context, notePath string) (string, error)
	Create(ctx context.Context, notePath, content string) error
	Modify(ctx context.Context, notePath, content string) error
}

// ErrOutsideVault is returned for paths that escape the vault root.
var ErrOutsideVault = errors.New("notes: path escapes vault root")

// ErrNoteExists is returned by Create when the note is already there.
var ErrNoteExists = errors.New("notes: note already exists")

// DirVault is a Vault over a directory on disk.
type DirVault struct {
	root string
}

// NewDirVault creates a vault rooted at dir. The directory is created if
// missing.
func NewDirVault(dir string) (*DirVault, error) {
	if dir == "" {
		return nil, errors.New("notes: vault path is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	return &DirVault{root: abs}, nil
}

// Root returns the vault directory.
func (v *DirVault) Root() string {
	return v.root
}

// resolve maps a vault path onto the filesystem.
func (v *DirVault) resolve(notePath string) (string, error) {
	if notePath == "" || path.IsAbs(notePath) || filepath.IsAbs(notePath) {
		return "", fmt.Errorf("%w: %q", ErrOutsideVault, notePath)
	}
	clean := path.Clean(notePath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrOutsideVault, notePath)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// Exists reports whether a note exists.
func (v *DirVault) Exists(_ context.Context, notePath string) (bool, error) {
	p, err := v.resolve(notePath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Read returns a note's content.
func (v *DirVault) Read(_ context.Context, notePath string) (string, error) {
	p, err := v.resolve(notePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create writes a new note, creating parent folders. It fails with
// ErrNoteExists rather than overwrite.
func (v *DirVault) Create(_ context.Context, notePath, content string) error {
	p, err := v.resolve(notePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrNoteExists, notePath)
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Modify replaces an existing note's content atomically.
func (v *DirVault) Modify(_ context.Context, notePath, content string) error {
	p, err := v.resolve(notePath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".vaultmark-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}
