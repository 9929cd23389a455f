package structure

import (
	"fmt"

	"libstor/internal/libstor"
)

// NewWriter creates a snapshot writer for format ("csv" or "markdown") in
// dir. root is the library the snapshot describes.
func NewWriter(format, dir, root string) (libstor.StructureWriter, error) {
	switch format {
	case "csv", "":
		return NewCSVWriter(dir)
	case "markdown":
		return NewMarkdownWriter(dir, root)
	default:
		return nil, fmt.Errorf("unknown structure format: %q", format)
	}
}

// NewReader opens the CSV snapshot in dir. Markdown catalogues are export only.
func NewReader(dir string) (libstor.StructureReader, error) {
	return NewCSVReader(dir)
}
