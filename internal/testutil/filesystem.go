package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"libstor/internal/libstor"
)

// ErrInjected is returned by MockFilesystemManager operations that were
// told to fail.
var ErrInjected = errors.New("injected failure")

// MockFilesystemManager is an in-memory filesystem for testing. It holds a
// single library root; all file paths are relative to it.
type MockFilesystemManager struct {
	mu        sync.Mutex
	root      string
	files     map[string][]byte
	failHash  map[string]bool
	failWrite map[string]bool
	failWalk  map[string]bool
}

// NewMockFilesystemManager creates a new mock filesystem rooted at root.
func NewMockFilesystemManager(root string) *MockFilesystemManager {
	return &MockFilesystemManager{
		root:      root,
		files:     make(map[string][]byte),
		failHash:  make(map[string]bool),
		failWrite: make(map[string]bool),
		failWalk:  make(map[string]bool),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(rel, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[rel] = []byte(content)
}

// FailHash makes reading rel fail.
func (m *MockFilesystemManager) FailHash(rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failHash[rel] = true
}

// FailWrite makes creating or moving onto rel fail.
func (m *MockFilesystemManager) FailWrite(rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[rel] = true
}

// FailWalk reports the directory dir as unreadable during Walk; the files
// below it are skipped.
func (m *MockFilesystemManager) FailWalk(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWalk[dir] = true
}

// Files returns a copy of the current contents.
func (m *MockFilesystemManager) Files() Tree {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree := Tree{}
	for rel, data := range m.files {
		tree[rel] = string(data)
	}
	return tree
}

// Root returns the resolved library root.
func (m *MockFilesystemManager) Root() *libstor.Path {
	return libstor.NewPath(m.root, true, &mockFileInfo{name: m.root, isDir: true})
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*libstor.Path, error) {
	if rawPath != m.root {
		return nil, fmt.Errorf("file not found: %s", rawPath)
	}
	return m.Root(), nil
}

func (m *MockFilesystemManager) Walk(ctx context.Context, root *libstor.Path, fn libstor.WalkFunc) error {
	m.mu.Lock()
	rels := make([]string, 0, len(m.files))
	for rel := range m.files {
		rels = append(rels, rel)
	}
	failWalk := make(map[string]bool, len(m.failWalk))
	for dir := range m.failWalk {
		failWalk[dir] = true
	}
	m.mu.Unlock()
	sort.Strings(rels)

	reported := make(map[string]bool)
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dir := failedDir(rel, failWalk); dir != "" {
			if !reported[dir] {
				reported[dir] = true
				if err := fn(dir, fmt.Errorf("reading directory: %w", ErrInjected)); err != nil {
					return err
				}
			}
			continue
		}
		if err := fn(rel, nil); err != nil {
			return err
		}
	}
	return nil
}

func failedDir(rel string, failWalk map[string]bool) string {
	for dir := range failWalk {
		if strings.HasPrefix(rel, dir+"/") {
			return dir
		}
	}
	return ""
}

func (m *MockFilesystemManager) Hash(root *libstor.Path, rel string) (string, error) {
	m.mu.Lock()
	data, ok := m.files[rel]
	fail := m.failHash[rel]
	m.mu.Unlock()
	if fail {
		return "", fmt.Errorf("reading %s: %w", rel, ErrInjected)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	return Hash(string(data)), nil
}

func (m *MockFilesystemManager) Exists(root *libstor.Path, rel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[rel]
	return ok
}

func (m *MockFilesystemManager) Open(root *libstor.Path, rel string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[rel]
	if !ok {
		return nil, fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockFilesystemManager) WriteFile(root *libstor.Path, rel string, r io.Reader) (bool, error) {
	m.mu.Lock()
	fail := m.failWrite[rel]
	m.mu.Unlock()
	if fail {
		return false, fmt.Errorf("writing %s: %w", rel, ErrInjected)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, replaced := m.files[rel]
	m.files[rel] = data
	return replaced, nil
}

func (m *MockFilesystemManager) Move(root *libstor.Path, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite[to] {
		return false, fmt.Errorf("moving to %s: %w", to, ErrInjected)
	}
	data, ok := m.files[from]
	if !ok {
		return false, fmt.Errorf("%s: %w", from, fs.ErrNotExist)
	}
	_, replaced := m.files[to]
	delete(m.files, from)
	m.files[to] = data
	return replaced, nil
}

func (m *MockFilesystemManager) Remove(root *libstor.Path, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[rel]; !ok {
		return fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	delete(m.files, rel)
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name  string
	isDir bool
}

func (m *mockFileInfo) Name() string { return m.name }
func (m *mockFileInfo) Size() int64  { return 0 }
func (m *mockFileInfo) Mode() fs.FileMode {
	if m.isDir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ libstor.FilesystemManager = (*MockFilesystemManager)(nil)
