// Package artifact stores generated files (uploads, audio, cut-outs,
// downloads) under a per-feature prefix.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"multitool/internal/core"
	"multitool/internal/services"
)

// ValidName rejects names that could escape the feature directory.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid file name %q", core.ErrInvalidInput, name)
	}
	return nil
}

func validate(f core.Feature, name string) error {
	if !f.Valid() {
		return fmt.Errorf("%w: unknown feature %q", core.ErrInvalidInput, f)
	}
	return ValidName(name)
}

// LocalStore keeps artifacts in root/<feature>/<name>.
type LocalStore struct {
	root string
}

var _ services.ArtifactStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(f core.Feature, name string) string {
	return filepath.Join(s.root, string(f), name)
}

// Save writes to a temp file and renames it into place so readers never
// see a partial file.
func (s *LocalStore) Save(_ context.Context, f core.Feature, name string, r io.Reader, _ string) error {
	if err := validate(f, name); err != nil {
		return err
	}
	dir := filepath.Join(s.root, string(f))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feature dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(f, name)); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, f core.Feature, name string) (io.ReadCloser, error) {
	if err := validate(f, name); err != nil {
		return nil, err
	}
	file, err := os.Open(s.path(f, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}

func (s *LocalStore) Exists(_ context.Context, f core.Feature, name string) (bool, error) {
	if err := validate(f, name); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path(f, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Clear removes every artifact of a feature.
func (s *LocalStore) Clear(_ context.Context, f core.Feature) error {
	if !f.Valid() {
		return fmt.Errorf("%w: unknown feature %q", core.ErrInvalidInput, f)
	}
	dir := filepath.Join(s.root, string(f))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}
