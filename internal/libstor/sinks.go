package libstor

// ProgressSink receives progress of long operations. total is 0 when unknown
// and page is 0 outside paged exports.
type ProgressSink interface {
	Progress(current, total, page int)
}

type ProgressFunc func(current, total, page int)

func (f ProgressFunc) Progress(current, total, page int) { f(current, total, page) }

// DuplicateSink receives content seen at a second location.
type DuplicateSink interface {
	Duplicate(d *Duplicate)
}

type DuplicateFunc func(d *Duplicate)

func (f DuplicateFunc) Duplicate(d *Duplicate) { f(d) }

// FileErrorSink receives per-file failures that did not stop the operation.
type FileErrorSink interface {
	FileError(err *FileError)
}

type FileErrorFunc func(err *FileError)

func (f FileErrorFunc) FileError(err *FileError) { f(err) }

// ConflictSink receives diff entries skipped because of an integrity conflict.
type ConflictSink interface {
	Conflict(err *ConflictError)
}

type ConflictFunc func(err *ConflictError)

func (f ConflictFunc) Conflict(err *ConflictError) { f(err) }

// Duplicate is content already known at ExistingPath found again at InsertedPath.
type Duplicate struct {
	Hash         string
	ExistingPath string
	InsertedPath string
}

type nopSink struct{}

func (nopSink) Progress(int, int, int)  {}
func (nopSink) Duplicate(*Duplicate)    {}
func (nopSink) FileError(*FileError)    {}
func (nopSink) Conflict(*ConflictError) {}
