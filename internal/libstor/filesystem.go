package libstor

import (
	"context"
	"io"
)

// WalkFunc is called for every regular, non-ignored file below a root with
// its root-relative "/" separated path. err is set when a subdirectory could
// not be read; its contents are skipped.
type WalkFunc func(rel string, err error) error

// FilesystemManager provides an interface for filesystem operations.
// Paths other than the root are relative to the root and "/" separated.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Walk visits files below root in lexical order, skipping ignored ones.
	Walk(ctx context.Context, root *Path, fn WalkFunc) error

	// Hash returns the content fingerprint of a file.
	Hash(root *Path, rel string) (string, error)

	// Exists reports whether rel is a regular file.
	Exists(root *Path, rel string) bool

	Open(root *Path, rel string) (io.ReadCloser, error)

	// WriteFile creates rel from r, creating parent directories. It reports
	// whether an existing file was replaced.
	WriteFile(root *Path, rel string, r io.Reader) (replaced bool, err error)

	// Move renames from to to, creating parent directories of to. It reports
	// whether an existing file was replaced.
	Move(root *Path, from, to string) (replaced bool, err error)

	Remove(root *Path, rel string) error
}
