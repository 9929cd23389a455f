package libstor

import (
	"fmt"
	"path"
	"strings"
)

// RowState tracks a file record through a scan pass.
//
// Every active row becomes pending when a pass starts. Observing the hash on
// disk makes it active again; rows still pending when the walk finishes are
// gone from disk and become deleted. A deleted row is revived when its hash
// shows up again.
type RowState int

const (
	StateActive RowState = iota
	StatePending
	StateDeleted
)

func (s RowState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePending:
		return "pending"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("RowState(%d)", int(s))
	}
}

// ParseRowState is the inverse of RowState.String.
func ParseRowState(s string) (RowState, error) {
	switch s {
	case "active":
		return StateActive, nil
	case "pending":
		return StatePending, nil
	case "deleted":
		return StateDeleted, nil
	default:
		return 0, fmt.Errorf("unknown row state: %q", s)
	}
}

// FileRecord is one row of the identity table: a content hash and the last
// known location of a file with that content, relative to the library root.
type FileRecord struct {
	ID        int64
	Hash      string
	Directory string // "" for files in the root, "/" separated otherwise
	Filename  string
	State     RowState
}

// Path returns the record's location relative to the library root.
func (r *FileRecord) Path() string {
	return JoinPath(r.Directory, r.Filename)
}

// IsDeleted reports whether the row is currently not known to be on disk.
func (r *FileRecord) IsDeleted() bool {
	return r.State != StateActive
}

// JoinPath joins a directory and a filename into a root-relative path.
func JoinPath(directory, filename string) string {
	if directory == "" {
		return filename
	}
	return directory + "/" + filename
}

// SplitPath splits a root-relative, "/" separated path into directory and filename.
// Files in the root get an empty directory.
func SplitPath(rel string) (directory, filename string) {
	rel = strings.TrimPrefix(rel, "/")
	directory, filename = path.Split(rel)
	return strings.TrimSuffix(directory, "/"), filename
}

// Tag is a hierarchical label. ParentID is 0 for root tags.
type Tag struct {
	ID       int64
	Name     string
	ParentID int64
}

// FileTag assigns a tag to a file record.
type FileTag struct {
	TagID  int64
	FileID int64
}
