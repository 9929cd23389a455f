package libstor

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store mutations that target a missing row.
var ErrNotFound = errors.New("not found")

// FileError is a per-file failure (unreadable file, unwritable destination).
// It is reported and the surrounding operation continues.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// ConflictError reports content whose identity clashes with what a store
// already holds. During import it aborts the whole import; during apply only
// the offending entry is skipped.
type ConflictError struct {
	Hash         string
	ExistingPath string
	InsertedPath string
	Reason       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("integrity conflict for %s: %s (existing: %q, inserted: %q)",
		e.Hash, e.Reason, e.ExistingPath, e.InsertedPath)
}

// ArchiveError means a diff package is unreadable or inconsistent. Nothing is
// applied from an archive that fails verification.
type ArchiveError struct {
	Reason string
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt diff archive: %s: %v", e.Reason, e.Err)
	}
	return "corrupt diff archive: " + e.Reason
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// PathError means the root of an operation does not exist or is not a directory.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid library root %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
