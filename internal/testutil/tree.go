package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"libstor/internal/libstor"
)

// Tree maps root-relative "/" separated paths to file contents.
type Tree map[string]string

// WriteTree creates the files of tree below root.
func WriteTree(t *testing.T, root string, tree Tree) {
	t.Helper()
	for rel, content := range tree {
		WriteFile(t, root, rel, content)
	}
}

// WriteFile creates one file below root, with parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// MoveFile renames a file below root, creating the destination directory.
func MoveFile(t *testing.T, root, from, to string) {
	t.Helper()
	dst := filepath.Join(root, filepath.FromSlash(to))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", to, err)
	}
	if err := os.Rename(filepath.Join(root, filepath.FromSlash(from)), dst); err != nil {
		t.Fatalf("move %s to %s: %v", from, to, err)
	}
}

// RemoveFile deletes a file below root.
func RemoveFile(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("remove %s: %v", rel, err)
	}
}

// ReadTree returns every regular file below root.
func ReadTree(t *testing.T, root string) Tree {
	t.Helper()
	tree := Tree{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return tree
}

// RootPath returns a resolved directory path for root.
func RootPath(t *testing.T, root string) *libstor.Path {
	t.Helper()
	abs, err := filepath.Abs(root)
	if err != nil {
		t.Fatalf("abs %s: %v", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatalf("stat %s: %v", root, err)
	}
	return libstor.NewPath(abs, true, info)
}
