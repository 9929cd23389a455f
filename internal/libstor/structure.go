package libstor

import (
	"context"
	"io"
)

// StructureWriter receives a paged snapshot of the active records followed
// by the tag tables.
type StructureWriter interface {
	// OpenPage starts page n. Pages are numbered from 1.
	OpenPage(n int) error
	WriteRecord(rec *FileRecord) error
	// ClosePage ends the current page; last is true for the final page.
	ClosePage(last bool) error

	WriteTags(tags []*Tag) error
	WriteFileTags(fileTags []*FileTag) error

	io.Closer
}

// StructureReader streams a snapshot back. Records are delivered page by
// page in page number order.
type StructureReader interface {
	ReadRecords(ctx context.Context, fn func(*FileRecord) error) error
	ReadTags(fn func(*Tag) error) error
	ReadFileTags(fn func(*FileTag) error) error
}

// DiffWriter builds a diff package.
type DiffWriter interface {
	WriteEntry(e *DiffEntry) error
	// AddFile stores the bytes of a new file under its inserted path.
	AddFile(insertedPath string, r io.Reader) error
	io.Closer
}

// DiffReader reads a verified diff package.
type DiffReader interface {
	Entries() []*DiffEntry
	OpenFile(insertedPath string) (io.ReadCloser, error)
}
