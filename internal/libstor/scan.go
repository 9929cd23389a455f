package libstor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ScanOptions configures a scan pass. Nil sinks discard their events.
type ScanOptions struct {
	Role       Role
	Progress   ProgressSink
	Duplicates DuplicateSink
	Errors     FileErrorSink
}

// ScanResult is everything a scan pass found. Entries are in traversal
// order, followed by the files that disappeared.
type ScanResult struct {
	Role       Role
	Entries    []*DiffEntry
	Scanned    int
	Duplicates []*Duplicate
	Errors     []*FileError
}

// Count returns the number of entries with the given status.
func (r *ScanResult) Count(status FileStatus) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

// HasChanges reports whether the pass produced any diff entries.
func (r *ScanResult) HasChanges() bool {
	return len(r.Entries) > 0
}

type scanPass struct {
	root   *Path
	role   Role
	opts   ScanOptions
	result *ScanResult
}

// Scan walks root, reconciles every file against the identity store and
// returns the changes since the previous pass.
//
// In the original role moves are committed to the store. In the copy role
// the store keeps the locations it was imported with, so the resulting
// entries describe how the copy differs from the original.
func (s *LibraryService) Scan(ctx context.Context, root *Path, opts ScanOptions) (*ScanResult, error) {
	if root == nil || !root.IsDir() {
		return nil, &PathError{Path: pathString(root), Err: fmt.Errorf("not a directory")}
	}
	role := opts.Role
	if role == "" {
		role = RoleOriginal
	}

	ctx, span := tracer.Start(ctx, "libstor.Scan", trace.WithAttributes(
		attribute.String("libstor.root", root.String()),
		attribute.String("libstor.role", string(role)),
	))
	defer span.End()

	pass := &scanPass{root: root, role: role, opts: opts, result: &ScanResult{Role: role}}
	progress := progressOrNop(opts.Progress)

	if err := s.database.MarkAllPending(ctx); err != nil {
		return nil, fmt.Errorf("starting scan pass: %w", err)
	}
	if err := s.runPass(ctx, pass, progress); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if restoreErr := s.abandonPass(ctx); restoreErr != nil {
			return nil, errors.Join(err, restoreErr)
		}
		return nil, err
	}

	r := pass.result
	span.SetAttributes(
		attribute.Int("libstor.scanned", r.Scanned),
		attribute.Int("libstor.entries", len(r.Entries)),
		attribute.Int("libstor.duplicates", len(r.Duplicates)),
	)
	s.logger.Info("scan complete",
		"root", root.String(),
		"role", string(role),
		"scanned", r.Scanned,
		"new", r.Count(StatusNew),
		"moved", r.Count(StatusMoved)+r.Count(StatusRenamed)+r.Count(StatusMovedAndRenamed),
		"deleted", r.Count(StatusDeleted),
		"duplicates", len(r.Duplicates),
		"errors", len(r.Errors),
	)
	return r, nil
}

// runPass walks the tree and closes the pass opened by MarkAllPending.
func (s *LibraryService) runPass(ctx context.Context, pass *scanPass, progress ProgressSink) error {
	// Cancellation is honoured between files; a statement is never
	// interrupted halfway through the pass.
	store := context.WithoutCancel(ctx)
	err := s.fsmgr.Walk(ctx, pass.root, func(rel string, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.fileError(pass, &FileError{Op: "read directory", Path: rel, Err: walkErr})
			return nil
		}
		if err := s.scanFile(store, pass, rel); err != nil {
			return err
		}
		pass.result.Scanned++
		progress.Progress(pass.result.Scanned, 0, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", pass.root, err)
	}

	total, err := s.database.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("counting missing files: %w", err)
	}
	err = s.pageRecords(total, func(offset, limit int) ([]*FileRecord, error) {
		return s.database.PagePending(ctx, offset, limit)
	}, func(rec *FileRecord) error {
		pass.result.Entries = append(pass.result.Entries, &DiffEntry{
			Status:      StatusDeleted,
			ExistedPath: rec.Path(),
			Hash:        rec.Hash,
			FileID:      rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing missing files: %w", err)
	}

	if err := s.database.FinishPass(ctx); err != nil {
		return fmt.Errorf("finishing scan pass: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	return nil
}

// abandonPass undoes MarkAllPending after a failed or cancelled walk, so
// files the walk never reached are not left out of the next export.
func (s *LibraryService) abandonPass(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.database.RestorePending(ctx); err != nil {
		s.logger.Error("restoring pending records failed", "error", err)
		return fmt.Errorf("restoring pending records: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	return nil
}

func (s *LibraryService) scanFile(ctx context.Context, pass *scanPass, rel string) error {
	hash, err := s.fsmgr.Hash(pass.root, rel)
	if err != nil {
		s.fileError(pass, &FileError{Op: "hash", Path: rel, Err: err})
		return nil
	}

	directory, filename := SplitPath(rel)
	obs, err := s.database.Observe(ctx, hash, directory, filename)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rel, err)
	}

	switch obs.Status {
	case StatusUntouched:
		return nil
	case StatusNew:
		pass.result.Entries = append(pass.result.Entries, &DiffEntry{
			Status:       StatusNew,
			InsertedPath: rel,
			Hash:         hash,
			FileID:       obs.Record.ID,
		})
		s.logger.Debug("new file", "path", rel, "id", obs.Record.ID)
		return nil
	}

	// The hash is known under another location. It is a second copy if that
	// location was already seen in this pass or still holds the same content.
	existed := obs.Record.Path()
	if obs.PrevState == StateActive || s.sameContentAt(pass.root, existed, hash) {
		d := &Duplicate{Hash: hash, ExistingPath: existed, InsertedPath: rel}
		pass.result.Duplicates = append(pass.result.Duplicates, d)
		if pass.opts.Duplicates != nil {
			pass.opts.Duplicates.Duplicate(d)
		}
		s.logger.Info("duplicate file", "existing", existed, "inserted", rel, "hash", hash)
		return nil
	}

	pass.result.Entries = append(pass.result.Entries, &DiffEntry{
		Status:       obs.Status,
		ExistedPath:  existed,
		InsertedPath: rel,
		Hash:         hash,
		FileID:       obs.Record.ID,
	})
	s.logger.Debug("file relocated", "status", obs.Status.String(), "from", existed, "to", rel)

	if pass.role == RoleOriginal {
		if err := s.database.UpdateLocation(ctx, hash, directory, filename); err != nil {
			return fmt.Errorf("updating location of %s: %w", rel, err)
		}
	}
	return nil
}

func (s *LibraryService) sameContentAt(root *Path, rel, hash string) bool {
	if !s.fsmgr.Exists(root, rel) {
		return false
	}
	got, err := s.fsmgr.Hash(root, rel)
	if err != nil {
		s.logger.Debug("could not hash previous location", "path", rel, "error", err)
		return false
	}
	return got == hash
}

func (s *LibraryService) fileError(pass *scanPass, fe *FileError) {
	pass.result.Errors = append(pass.result.Errors, fe)
	if pass.opts.Errors != nil {
		pass.opts.Errors.FileError(fe)
	}
	s.logger.Warn("skipping file", "op", fe.Op, "path", fe.Path, "error", fe.Err)
}

func pathString(p *Path) string {
	if p == nil {
		return ""
	}
	return p.String()
}
