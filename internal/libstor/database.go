package libstor

import (
	"context"
	"time"
)

// RowOrder selects how active rows are paged.
type RowOrder int

const (
	OrderByID RowOrder = iota
	// OrderByFilename sorts by filename, then id. Snapshot exports use it.
	OrderByFilename
)

// IdentityStore maps content hashes to their last known location.
// Lookups return nil, nil when nothing matches.
type IdentityStore interface {
	// MarkAllPending starts a scan pass: every active row becomes pending.
	MarkAllPending(ctx context.Context) error

	// Observe records that content with the given hash was seen at
	// directory/filename. Unknown hashes are inserted as new active rows.
	// Known hashes are made active again but keep their stored location;
	// the returned Observation carries that location and the classification.
	Observe(ctx context.Context, hash, directory, filename string) (*Observation, error)

	// UpdateLocation rewrites the stored location for a hash.
	UpdateLocation(ctx context.Context, hash, directory, filename string) error

	// CountPending and PagePending list rows not observed in the current pass.
	CountPending(ctx context.Context) (int, error)
	PagePending(ctx context.Context, offset, limit int) ([]*FileRecord, error)

	// FinishPass ends a scan pass: every pending row becomes deleted.
	FinishPass(ctx context.Context) error

	// RestorePending abandons a pass that did not finish: every pending row
	// becomes active again.
	RestorePending(ctx context.Context) error

	FindByHash(ctx context.Context, hash string) (*FileRecord, error)
	FindByID(ctx context.Context, id int64) (*FileRecord, error)
	FindByLocation(ctx context.Context, directory, filename string) (*FileRecord, error)

	CountActive(ctx context.Context) (int, error)
	PageActive(ctx context.Context, order RowOrder, offset, limit int) ([]*FileRecord, error)

	// CountByState returns the number of rows in each state.
	CountByState(ctx context.Context) (map[RowState]int, error)

	// InsertWithID inserts a record keeping its id. Used by snapshot import
	// and diff apply, where ids must agree across stores.
	InsertWithID(ctx context.Context, rec *FileRecord) error

	// RenameRow and DeleteRow return ErrNotFound when no row has the hash.
	RenameRow(ctx context.Context, hash, directory, filename string) error
	DeleteRow(ctx context.Context, hash string) error

	// Flush commits any buffered writes.
	Flush(ctx context.Context) error
}

// Observation is the result of IdentityStore.Observe.
type Observation struct {
	// Record holds the row after the call. For known hashes its location is
	// the one stored before the call.
	Record *FileRecord
	Status FileStatus
	// PrevState is the row state before the call. Active means the hash was
	// already observed during the current pass.
	PrevState RowState
}

// TagStore persists tags and their assignment to files.
type TagStore interface {
	CreateTag(ctx context.Context, name string, parentID int64) (*Tag, error)
	InsertTagWithID(ctx context.Context, tag *Tag) error
	FindTagByID(ctx context.Context, id int64) (*Tag, error)
	FindTagByName(ctx context.Context, name string) (*Tag, error)
	ListTags(ctx context.Context) ([]*Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	AssignTag(ctx context.Context, tagID, fileID int64) error
	UnassignTag(ctx context.Context, tagID, fileID int64) error
	ListFileTags(ctx context.Context) ([]*FileTag, error)
	FilesForTag(ctx context.Context, tagID int64) ([]*FileRecord, error)
	TagsForFile(ctx context.Context, fileID int64) ([]*Tag, error)
}

// Operation is one row of the operations history.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string
	Scanned    int
	Duplicates int
	Errors     int
}

// OperationStore persists the operations history.
type OperationStore interface {
	CreateOperation(ctx context.Context, op *Operation) error
	FinishOperation(ctx context.Context, op *Operation) error
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)
}

// Database is the per-library store.
type Database interface {
	IdentityStore
	TagStore
	OperationStore

	// Atomically runs fn in one transaction that is rolled back when fn
	// returns an error.
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error

	// Close flushes pending writes and closes the connection.
	Close() error
}
