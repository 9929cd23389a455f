// Package archive reads and writes diff packages: a zip holding the manifest
// diff.csv and the bytes of every new file under storage/.
package archive

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"libstor/internal/libstor"
)

const (
	// ManifestName is the manifest entry of a diff package.
	ManifestName = "diff.csv"
	// StoragePrefix holds the bytes of new files, keyed by inserted path.
	StoragePrefix = "storage/"
)

// statusNames is the manifest spelling of each diff status.
var statusNames = map[libstor.FileStatus]string{
	libstor.StatusNew:             "NEW",
	libstor.StatusMoved:           "MOVED",
	libstor.StatusRenamed:         "RENAMED",
	libstor.StatusMovedAndRenamed: "MOVED_AND_RENAMED",
	libstor.StatusDeleted:         "DELETED",
}

// legacyStatusNames are accepted when reading packages built by older tools.
var legacyStatusNames = map[string]libstor.FileStatus{
	"Новый":                       libstor.StatusNew,
	"Переместили":                 libstor.StatusMoved,
	"Переименовали":               libstor.StatusRenamed,
	"Переместили и переименовали": libstor.StatusMovedAndRenamed,
	"Удалён":                      libstor.StatusDeleted,
}

// FormatStatus returns the manifest spelling of s. Only statuses that
// belong in a manifest have one.
func FormatStatus(s libstor.FileStatus) (string, error) {
	name, ok := statusNames[s]
	if !ok {
		return "", fmt.Errorf("status %s cannot be written to a manifest", s)
	}
	return name, nil
}

// ParseStatus is the inverse of FormatStatus and also accepts legacy names.
func ParseStatus(name string) (libstor.FileStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	if s, ok := legacyStatusNames[name]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown manifest status %q", name)
}

// encodeEntry returns the status,existed,inserted,hash,id row for e.
func encodeEntry(e *libstor.DiffEntry) ([]string, error) {
	status, err := FormatStatus(e.Status)
	if err != nil {
		return nil, err
	}
	return []string{status, e.ExistedPath, e.InsertedPath, e.Hash, strconv.FormatInt(e.FileID, 10)}, nil
}

// decodeEntry parses and validates one manifest row.
func decodeEntry(row []string) (*libstor.DiffEntry, error) {
	if len(row) != 5 {
		return nil, fmt.Errorf("want 5 fields, got %d", len(row))
	}
	status, err := ParseStatus(row[0])
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q", row[4])
	}
	e := &libstor.DiffEntry{
		Status:       status,
		ExistedPath:  row[1],
		InsertedPath: row[2],
		Hash:         row[3],
		FileID:       id,
	}
	if e.Hash == "" {
		return nil, fmt.Errorf("empty hash")
	}

	needExisted := status == libstor.StatusDeleted || status.IsRelocation()
	needInserted := status == libstor.StatusNew || status.IsRelocation()
	if needExisted != (e.ExistedPath != "") {
		return nil, fmt.Errorf("%s entry with existed path %q", statusNames[status], e.ExistedPath)
	}
	if needInserted != (e.InsertedPath != "") {
		return nil, fmt.Errorf("%s entry with inserted path %q", statusNames[status], e.InsertedPath)
	}
	for _, p := range []string{e.ExistedPath, e.InsertedPath} {
		if p == "" {
			continue
		}
		if err := checkPath(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// checkPath rejects paths that would leave the library root. Only "/"
// separates segments; backslashes and other characters are part of a name.
func checkPath(p string) error {
	if strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return fmt.Errorf("path %q is not a clean relative path", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("path %q escapes the library root", p)
		}
	}
	return nil
}
