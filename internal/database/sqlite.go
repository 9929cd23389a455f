package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"libstor/internal/database/migrations"
	"libstor/internal/database/sqlc"
	"libstor/internal/libstor"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DefaultBatchSize is the number of writes grouped into one transaction.
const DefaultBatchSize = 30

// SQLiteDatabase implements the Database interface using SQLite.
//
// Writes are grouped: a transaction is opened on first use and committed
// after batchSize writes, on Flush and on Close. Reads go through the same
// transaction so they always see buffered writes.
type SQLiteDatabase struct {
	mu        sync.Mutex
	db        *sql.DB
	queries   *sqlc.Queries
	path      string
	batchSize int

	tx     *sql.Tx
	txq    *sqlc.Queries
	writes int
	// held is set inside Atomically; batch commits and Flush wait for it.
	held bool
}

// NewSQLiteDatabase opens the database at path, which can be a file path or
// ":memory:". The schema is not touched; see NewDatabaseFromConfig.
func NewSQLiteDatabase(path string, batchSize int) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteDatabaseFromDB(db, batchSize)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, batchSize int) *SQLiteDatabase {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SQLiteDatabase{
		db:        db,
		queries:   sqlc.New(db),
		batchSize: batchSize,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes access and keeps ":memory:" databases
	// alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// q returns the queries bound to the open transaction, beginning one if
// needed. The transaction outlives ctx; only statements are bound to it.
func (s *SQLiteDatabase) q(ctx context.Context) (*sqlc.Queries, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, fmt.Errorf("starting transaction: %w", err)
		}
		s.tx = tx
		s.txq = s.queries.WithTx(tx)
	}
	return s.txq, nil
}

// wrote counts a write and commits once the batch is full.
func (s *SQLiteDatabase) wrote() error {
	s.writes++
	if s.writes >= s.batchSize {
		return s.commit()
	}
	return nil
}

func (s *SQLiteDatabase) commit() error {
	if s.tx == nil || s.held {
		return nil
	}
	err := s.tx.Commit()
	s.tx, s.txq, s.writes = nil, nil, 0
	if err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Flush commits buffered writes.
func (s *SQLiteDatabase) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}

func (s *SQLiteDatabase) rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx, s.txq, s.writes = nil, nil, 0
	if err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// Atomically runs fn in a single transaction. Buffered writes are committed
// first; everything fn writes is rolled back if it returns an error.
func (s *SQLiteDatabase) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.held {
		s.mu.Unlock()
		return fmt.Errorf("nested atomic section")
	}
	if err := s.commit(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.held = true
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	if err != nil {
		if rbErr := s.rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return s.commit()
}

// File records

func (s *SQLiteDatabase) MarkAllPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if err := q.MarkActiveFilesPending(ctx); err != nil {
		return fmt.Errorf("marking files pending: %w", err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) Observe(ctx context.Context, hash, directory, filename string) (*libstor.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}

	row, err := q.GetFileByHash(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		created, err := q.InsertFile(ctx, sqlc.InsertFileParams{
			Hash:      hash,
			Directory: directory,
			Filename:  filename,
			State:     libstor.StateActive.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("inserting file: %w", err)
		}
		rec, err := toRecord(created)
		if err != nil {
			return nil, err
		}
		return &libstor.Observation{Record: rec, Status: libstor.StatusNew, PrevState: libstor.StateActive}, s.wrote()
	}
	if err != nil {
		return nil, fmt.Errorf("finding file by hash: %w", err)
	}

	rec, err := toRecord(row)
	if err != nil {
		return nil, err
	}
	prev := rec.State
	if prev != libstor.StateActive {
		err := q.UpdateFileState(ctx, sqlc.UpdateFileStateParams{State: libstor.StateActive.String(), Hash: hash})
		if err != nil {
			return nil, fmt.Errorf("activating file: %w", err)
		}
		rec.State = libstor.StateActive
		if err := s.wrote(); err != nil {
			return nil, err
		}
	}

	return &libstor.Observation{
		Record:    rec,
		Status:    libstor.Classify(row.Directory, row.Filename, directory, filename),
		PrevState: prev,
	}, nil
}

func (s *SQLiteDatabase) UpdateLocation(ctx context.Context, hash, directory, filename string) error {
	return s.relocate(ctx, hash, directory, filename)
}

func (s *SQLiteDatabase) RenameRow(ctx context.Context, hash, directory, filename string) error {
	return s.relocate(ctx, hash, directory, filename)
}

func (s *SQLiteDatabase) relocate(ctx context.Context, hash, directory, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	n, err := q.UpdateFileLocation(ctx, sqlc.UpdateFileLocationParams{
		Directory: directory,
		Filename:  filename,
		Hash:      hash,
	})
	if err != nil {
		return fmt.Errorf("updating file location: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", hash, libstor.ErrNotFound)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) CountPending(ctx context.Context) (int, error) {
	return s.countState(ctx, libstor.StatePending)
}

func (s *SQLiteDatabase) CountActive(ctx context.Context) (int, error) {
	return s.countState(ctx, libstor.StateActive)
}

func (s *SQLiteDatabase) countState(ctx context.Context, state libstor.RowState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.CountFilesByState(ctx, state.String())
	if err != nil {
		return 0, fmt.Errorf("counting %s files: %w", state, err)
	}
	return int(n), nil
}

func (s *SQLiteDatabase) CountByState(ctx context.Context) (map[libstor.RowState]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.CountFilesGroupedByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}
	counts := make(map[libstor.RowState]int, len(rows))
	for _, row := range rows {
		state, err := libstor.ParseRowState(row.State)
		if err != nil {
			return nil, err
		}
		counts[state] = int(row.Count)
	}
	return counts, nil
}

func (s *SQLiteDatabase) PagePending(ctx context.Context, offset, limit int) ([]*libstor.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.ListFilesByState(ctx, sqlc.ListFilesByStateParams{
		State:  libstor.StatePending.String(),
		Limit:  int64(limit),
		Offset: int64(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("listing pending files: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteDatabase) PageActive(ctx context.Context, order libstor.RowOrder, offset, limit int) ([]*libstor.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	var rows []sqlc.File
	switch order {
	case libstor.OrderByFilename:
		rows, err = q.ListFilesByStateOrderByFilename(ctx, sqlc.ListFilesByStateOrderByFilenameParams{
			State:  libstor.StateActive.String(),
			Limit:  int64(limit),
			Offset: int64(offset),
		})
	default:
		rows, err = q.ListFilesByState(ctx, sqlc.ListFilesByStateParams{
			State:  libstor.StateActive.String(),
			Limit:  int64(limit),
			Offset: int64(offset),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("listing active files: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteDatabase) FinishPass(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if err := q.MarkPendingFilesDeleted(ctx); err != nil {
		return fmt.Errorf("marking files deleted: %w", err)
	}
	return s.wrote()
}

// RestorePending abandons an unfinished pass: pending rows become active.
func (s *SQLiteDatabase) RestorePending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if err := q.RestorePendingFiles(ctx); err != nil {
		return fmt.Errorf("restoring pending files: %w", err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) FindByHash(ctx context.Context, hash string) (*libstor.FileRecord, error) {
	return s.findFile(ctx, "hash", func(q *sqlc.Queries) (sqlc.File, error) {
		return q.GetFileByHash(ctx, hash)
	})
}

func (s *SQLiteDatabase) FindByID(ctx context.Context, id int64) (*libstor.FileRecord, error) {
	return s.findFile(ctx, "id", func(q *sqlc.Queries) (sqlc.File, error) {
		return q.GetFileByID(ctx, id)
	})
}

func (s *SQLiteDatabase) FindByLocation(ctx context.Context, directory, filename string) (*libstor.FileRecord, error) {
	return s.findFile(ctx, "location", func(q *sqlc.Queries) (sqlc.File, error) {
		return q.GetFileByLocation(ctx, sqlc.GetFileByLocationParams{Directory: directory, Filename: filename})
	})
}

func (s *SQLiteDatabase) findFile(ctx context.Context, by string, get func(*sqlc.Queries) (sqlc.File, error)) (*libstor.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	row, err := get(q)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by %s: %w", by, err)
	}
	return toRecord(row)
}

func (s *SQLiteDatabase) InsertWithID(ctx context.Context, rec *libstor.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	err = q.InsertFileWithID(ctx, sqlc.InsertFileWithIDParams{
		ID:        rec.ID,
		Hash:      rec.Hash,
		Directory: rec.Directory,
		Filename:  rec.Filename,
		State:     rec.State.String(),
	})
	if err != nil {
		return fmt.Errorf("inserting file %d: %w", rec.ID, err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) DeleteRow(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	n, err := q.DeleteFileByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", hash, libstor.ErrNotFound)
	}
	return s.wrote()
}

func toRecord(f sqlc.File) (*libstor.FileRecord, error) {
	state, err := libstor.ParseRowState(f.State)
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", f.ID, err)
	}
	return &libstor.FileRecord{
		ID:        f.ID,
		Hash:      f.Hash,
		Directory: f.Directory,
		Filename:  f.Filename,
		State:     state,
	}, nil
}

func toRecords(rows []sqlc.File) ([]*libstor.FileRecord, error) {
	result := make([]*libstor.FileRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(); err != nil {
		return err
	}
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(); err != nil {
		return err
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close commits buffered writes and closes the connection.
func (s *SQLiteDatabase) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	commitErr := s.commit()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
	}
	return commitErr
}

// Compile-time check that SQLiteDatabase implements libstor.Database interface
var _ libstor.Database = (*SQLiteDatabase)(nil)
