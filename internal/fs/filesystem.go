package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"libstor/internal/libstor"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	ignorePatterns []string
}

// NewOSFilesystemManager creates a filesystem manager. ignorePatterns are
// evaluated after the built-in rules and before the root's .libstorignore.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignorePatterns: ignorePatterns}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*libstor.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return libstor.NewPath(absPath, info.IsDir(), info), nil
}

// Walk visits every regular file below root in lexical order. Symlinks and
// other special files are skipped, as is everything the ignore rules match.
// An ignored directory is not descended into.
func (m *OSFilesystemManager) Walk(ctx context.Context, root *libstor.Path, fn libstor.WalkFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root.String())
	}
	rules, err := LoadIgnoreRules(root.String(), m.ignorePatterns)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(root.String(), p)
		if relErr != nil {
			return fmt.Errorf("relative path of %s: %w", p, relErr)
		}
		rel = filepath.ToSlash(rel)
		if err != nil {
			if rel == "." {
				return err
			}
			return fn(rel, err)
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rules.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || rules.Ignored(rel, false) {
			return nil
		}
		return fn(rel, nil)
	})
}

func (m *OSFilesystemManager) Hash(root *libstor.Path, rel string) (string, error) {
	p, err := m.abs(root, rel)
	if err != nil {
		return "", err
	}
	return HashFile(p)
}

func (m *OSFilesystemManager) Exists(root *libstor.Path, rel string) bool {
	p, err := m.abs(root, rel)
	if err != nil {
		return false
	}
	info, err := os.Lstat(p)
	return err == nil && info.Mode().IsRegular()
}

func (m *OSFilesystemManager) Open(root *libstor.Path, rel string) (io.ReadCloser, error) {
	p, err := m.abs(root, rel)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (m *OSFilesystemManager) WriteFile(root *libstor.Path, rel string, r io.Reader) (bool, error) {
	p, err := m.abs(root, rel)
	if err != nil {
		return false, err
	}
	replaced := m.Exists(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return false, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := WriteFileAtomic(p, r); err != nil {
		return false, err
	}
	return replaced, nil
}

func (m *OSFilesystemManager) Move(root *libstor.Path, from, to string) (bool, error) {
	src, err := m.abs(root, from)
	if err != nil {
		return false, err
	}
	dst, err := m.abs(root, to)
	if err != nil {
		return false, err
	}
	replaced := m.Exists(root, to)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("renaming: %w", err)
	}
	return replaced, nil
}

func (m *OSFilesystemManager) Remove(root *libstor.Path, rel string) error {
	p, err := m.abs(root, rel)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// abs maps a root-relative path to an absolute one, refusing paths that
// would leave the root.
func (m *OSFilesystemManager) abs(root *libstor.Path, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("path escapes library root: %q", rel)
	}
	return filepath.Join(root.String(), local), nil
}

// ErrNotRegular is returned when a path exists but is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

var _ libstor.FilesystemManager = (*OSFilesystemManager)(nil)
