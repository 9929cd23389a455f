package libstor

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("libstor")

// defaultReadBatch is how many rows are read from the store per query when
// paging through a table.
const defaultReadBatch = 50

// LibraryService coordinates the store, the filesystem and the snapshot and
// diff codecs to perform the operations needed by the CLI.
type LibraryService struct {
	database  Database
	fsmgr     FilesystemManager
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	readBatch int
}

func NewLibraryService(database Database, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *LibraryService {
	return &LibraryService{
		database:  database,
		fsmgr:     fsmgr,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		readBatch: defaultReadBatch,
	}
}

// SetReadBatch changes how many rows are fetched per store query.
// Results do not depend on it.
func (s *LibraryService) SetReadBatch(n int) {
	if n > 0 {
		s.readBatch = n
	}
}

// pageRecords calls fn for every row returned by page, fetching readBatch
// rows at a time.
func (s *LibraryService) pageRecords(total int, page func(offset, limit int) ([]*FileRecord, error), fn func(*FileRecord) error) error {
	for offset := 0; offset < total; offset += s.readBatch {
		records, err := page(offset, s.readBatch)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func progressOrNop(p ProgressSink) ProgressSink {
	if p == nil {
		return nopSink{}
	}
	return p
}
