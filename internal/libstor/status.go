package libstor

import "fmt"

// FileStatus classifies how a file changed relative to the previous snapshot.
type FileStatus int

const (
	StatusUntouched FileStatus = iota
	StatusNew
	StatusMoved
	StatusRenamed
	StatusMovedAndRenamed
	StatusDeleted
	// StatusDuplicate marks a second file with already known content. It is
	// reported to the user and never written to a diff manifest.
	StatusDuplicate
)

func (s FileStatus) String() string {
	switch s {
	case StatusUntouched:
		return "untouched"
	case StatusNew:
		return "new"
	case StatusMoved:
		return "moved"
	case StatusRenamed:
		return "renamed"
	case StatusMovedAndRenamed:
		return "moved and renamed"
	case StatusDeleted:
		return "deleted"
	case StatusDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// IsRelocation reports whether the status describes a move and/or rename.
func (s FileStatus) IsRelocation() bool {
	return s == StatusMoved || s == StatusRenamed || s == StatusMovedAndRenamed
}

// Classify compares the stored location of a known hash with the location it
// was just observed at.
func Classify(prevDirectory, prevFilename, directory, filename string) FileStatus {
	moved := prevDirectory != directory
	renamed := prevFilename != filename
	switch {
	case moved && renamed:
		return StatusMovedAndRenamed
	case moved:
		return StatusMoved
	case renamed:
		return StatusRenamed
	default:
		return StatusUntouched
	}
}

// DiffEntry records one file's change during a scan pass. ExistedPath is empty
// for new files and InsertedPath is empty for deleted ones.
type DiffEntry struct {
	Status       FileStatus
	ExistedPath  string
	InsertedPath string
	Hash         string
	FileID       int64
}

// Role says which side of a two-location synchronization a scan represents.
type Role string

const (
	// RoleOriginal is the canonical library. Moves are committed to its store.
	RoleOriginal Role = "original"
	// RoleCopy is a physical copy compared against an imported snapshot of
	// the original. Its store locations are never rewritten.
	RoleCopy Role = "copy"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOriginal, RoleCopy:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleOriginal, RoleCopy)
	}
}
