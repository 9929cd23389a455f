package libstor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// movePrefix names the temporary files relocations pass through.
const movePrefix = ".libstor-move-"

// PackageDiff writes entries to w, storing the bytes of every new file.
// The caller closes w.
func (s *LibraryService) PackageDiff(ctx context.Context, root *Path, entries []*DiffEntry, w DiffWriter, progress ProgressSink) error {
	progress = progressOrNop(progress)

	ctx, span := tracer.Start(ctx, "libstor.PackageDiff")
	defer span.End()

	stored := 0
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.WriteEntry(e); err != nil {
			return fmt.Errorf("writing manifest entry for %s: %w", e.Hash, err)
		}
		if e.Status == StatusNew {
			if err := s.packageFile(root, e.InsertedPath, w); err != nil {
				return err
			}
			stored++
		}
		progress.Progress(i+1, len(entries), 0)
	}

	span.SetAttributes(attribute.Int("libstor.entries", len(entries)), attribute.Int("libstor.files", stored))
	s.logger.Info("diff packaged", "entries", len(entries), "files", stored)
	return nil
}

func (s *LibraryService) packageFile(root *Path, rel string, w DiffWriter) error {
	rc, err := s.fsmgr.Open(root, rel)
	if err != nil {
		return &FileError{Op: "package", Path: rel, Err: err}
	}
	defer rc.Close()
	if err := w.AddFile(rel, rc); err != nil {
		return fmt.Errorf("adding %s to diff: %w", rel, err)
	}
	return nil
}

// ApplyOptions configures ApplyDiff. Nil sinks discard their events.
type ApplyOptions struct {
	Progress  ProgressSink
	Errors    FileErrorSink
	Conflicts ConflictSink
}

// ApplyResult summarizes an applied diff.
type ApplyResult struct {
	Applied   int
	Conflicts []*ConflictError
	Errors    []*FileError
}

type applyPass struct {
	root   *Path
	diff   DiffReader
	opts   ApplyOptions
	result *ApplyResult
	done   int
	total  int
}

func (p *applyPass) step() {
	p.done++
	progressOrNop(p.opts.Progress).Progress(p.done, p.total, 0)
}

// ApplyDiff replays a verified diff against root and its store.
//
// Deletions run first, then relocations, then new files; each group keeps
// the manifest order. Relocations go through temporary names so chains and
// swaps of paths land correctly. Entries that clash with the store are
// reported as conflicts and skipped; per-file filesystem failures are
// reported and skipped. Store failures abort.
func (s *LibraryService) ApplyDiff(ctx context.Context, root *Path, diff DiffReader, opts ApplyOptions) (*ApplyResult, error) {
	if root == nil || !root.IsDir() {
		return nil, &PathError{Path: pathString(root), Err: fmt.Errorf("not a directory")}
	}

	ctx, span := tracer.Start(ctx, "libstor.ApplyDiff", trace.WithAttributes(
		attribute.String("libstor.root", root.String()),
	))
	defer span.End()

	var deletions, relocations, additions []*DiffEntry
	for _, e := range diff.Entries() {
		switch {
		case e.Status == StatusDeleted:
			deletions = append(deletions, e)
		case e.Status.IsRelocation():
			relocations = append(relocations, e)
		case e.Status == StatusNew:
			additions = append(additions, e)
		default:
			return nil, &ArchiveError{Reason: fmt.Sprintf("unexpected status %s for %s", e.Status, e.Hash)}
		}
	}

	pass := &applyPass{
		root:   root,
		diff:   diff,
		opts:   opts,
		result: &ApplyResult{},
		total:  len(deletions) + len(relocations) + len(additions),
	}

	for _, e := range deletions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.applyDelete(ctx, pass, e); err != nil {
			return nil, err
		}
		pass.step()
	}
	if err := s.applyRelocations(ctx, pass, relocations); err != nil {
		return nil, err
	}
	for _, e := range additions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.applyNew(ctx, pass, e); err != nil {
			return nil, err
		}
		pass.step()
	}

	if err := s.database.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flushing store: %w", err)
	}

	r := pass.result
	span.SetAttributes(
		attribute.Int("libstor.applied", r.Applied),
		attribute.Int("libstor.conflicts", len(r.Conflicts)),
		attribute.Int("libstor.errors", len(r.Errors)),
	)
	s.logger.Info("diff applied",
		"root", root.String(),
		"applied", r.Applied,
		"conflicts", len(r.Conflicts),
		"errors", len(r.Errors),
	)
	return r, nil
}

func (s *LibraryService) applyDelete(ctx context.Context, pass *applyPass, e *DiffEntry) error {
	switch {
	case !s.fsmgr.Exists(pass.root, e.ExistedPath):
		s.logger.Warn("file to delete is already gone", "path", e.ExistedPath)
	default:
		got, err := s.fsmgr.Hash(pass.root, e.ExistedPath)
		if err != nil {
			s.applyError(pass, &FileError{Op: "hash", Path: e.ExistedPath, Err: err})
			return nil
		}
		if got != e.Hash {
			s.logger.Warn("file to delete has different content, keeping it", "path", e.ExistedPath)
			break
		}
		if err := s.fsmgr.Remove(pass.root, e.ExistedPath); err != nil {
			s.applyError(pass, &FileError{Op: "delete", Path: e.ExistedPath, Err: err})
			return nil
		}
	}

	if err := s.database.DeleteRow(ctx, e.Hash); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("deleting record for %s: %w", e.ExistedPath, err)
		}
		s.logger.Warn("deleted file was not in store", "path", e.ExistedPath, "hash", e.Hash)
	}
	pass.result.Applied++
	return nil
}

type stagedMove struct {
	entry *DiffEntry
	tmp   string
}

func (s *LibraryService) applyRelocations(ctx context.Context, pass *applyPass, entries []*DiffEntry) error {
	var staged []stagedMove
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := s.checkRelocation(ctx, pass, e)
		if err != nil {
			return err
		}
		if !ok {
			pass.step()
			continue
		}
		tmp := movePrefix + s.idgen.New()
		if _, err := s.fsmgr.Move(pass.root, e.ExistedPath, tmp); err != nil {
			s.applyError(pass, &FileError{Op: "move", Path: e.ExistedPath, Err: err})
			pass.step()
			continue
		}
		staged = append(staged, stagedMove{entry: e, tmp: tmp})
	}

	for _, m := range staged {
		e := m.entry
		replaced, err := s.fsmgr.Move(pass.root, m.tmp, e.InsertedPath)
		if err != nil {
			s.logger.Error("relocated file left at temporary path", "path", m.tmp, "destination", e.InsertedPath)
			s.applyError(pass, &FileError{Op: "move", Path: e.InsertedPath, Err: err})
			pass.step()
			continue
		}
		if replaced {
			s.logger.Warn("relocation replaced an existing file", "path", e.InsertedPath)
		}
		directory, filename := SplitPath(e.InsertedPath)
		if err := s.database.RenameRow(ctx, e.Hash, directory, filename); err != nil {
			return fmt.Errorf("renaming record for %s: %w", e.InsertedPath, err)
		}
		pass.result.Applied++
		pass.step()
	}
	return nil
}

// checkRelocation reports whether e can be applied. The store must place the
// hash at the entry's source path and the source file must exist.
func (s *LibraryService) checkRelocation(ctx context.Context, pass *applyPass, e *DiffEntry) (bool, error) {
	rec, err := s.database.FindByHash(ctx, e.Hash)
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", e.Hash, err)
	}
	switch {
	case rec == nil:
		s.conflict(pass, &ConflictError{Hash: e.Hash, InsertedPath: e.InsertedPath, Reason: "relocated content is not in store"})
		return false, nil
	case rec.Path() == e.InsertedPath:
		s.logger.Warn("relocation already applied", "path", e.InsertedPath)
		return false, nil
	case rec.Path() != e.ExistedPath:
		s.conflict(pass, &ConflictError{
			Hash:         e.Hash,
			ExistingPath: rec.Path(),
			InsertedPath: e.InsertedPath,
			Reason:       fmt.Sprintf("store places content elsewhere than %q", e.ExistedPath),
		})
		return false, nil
	}
	if !s.fsmgr.Exists(pass.root, e.ExistedPath) {
		s.applyError(pass, &FileError{Op: "move", Path: e.ExistedPath, Err: fs.ErrNotExist})
		return false, nil
	}
	return true, nil
}

func (s *LibraryService) applyNew(ctx context.Context, pass *applyPass, e *DiffEntry) error {
	rec, err := s.database.FindByHash(ctx, e.Hash)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", e.Hash, err)
	}
	if rec != nil && rec.State == StateDeleted {
		// Content that left this library earlier is coming back under a new id.
		if err := s.database.DeleteRow(ctx, e.Hash); err != nil {
			return fmt.Errorf("dropping deleted record for %s: %w", e.Hash, err)
		}
		rec = nil
	}
	if rec != nil {
		s.conflict(pass, &ConflictError{Hash: e.Hash, ExistingPath: rec.Path(), InsertedPath: e.InsertedPath, Reason: "content already in store"})
		return nil
	}
	rec, err = s.database.FindByID(ctx, e.FileID)
	if err != nil {
		return fmt.Errorf("looking up id %d: %w", e.FileID, err)
	}
	if rec != nil && rec.State == StateDeleted {
		// The snapshot the copy was built from no longer held this id.
		if err := s.database.DeleteRow(ctx, rec.Hash); err != nil {
			return fmt.Errorf("dropping deleted record %d: %w", rec.ID, err)
		}
		rec = nil
	}
	if rec != nil {
		s.conflict(pass, &ConflictError{
			Hash:         e.Hash,
			ExistingPath: rec.Path(),
			InsertedPath: e.InsertedPath,
			Reason:       fmt.Sprintf("id %d already used", e.FileID),
		})
		return nil
	}

	rc, err := pass.diff.OpenFile(e.InsertedPath)
	if err != nil {
		return &ArchiveError{Reason: "reading stored file " + e.InsertedPath, Err: err}
	}
	replaced, err := s.fsmgr.WriteFile(pass.root, e.InsertedPath, rc)
	rc.Close()
	if err != nil {
		s.applyError(pass, &FileError{Op: "extract", Path: e.InsertedPath, Err: err})
		return nil
	}
	if replaced {
		s.logger.Warn("new file replaced an existing file", "path", e.InsertedPath)
	}

	directory, filename := SplitPath(e.InsertedPath)
	err = s.database.InsertWithID(ctx, &FileRecord{
		ID:        e.FileID,
		Hash:      e.Hash,
		Directory: directory,
		Filename:  filename,
		State:     StateActive,
	})
	if err != nil {
		return fmt.Errorf("inserting record for %s: %w", e.InsertedPath, err)
	}
	pass.result.Applied++
	return nil
}

func (s *LibraryService) applyError(pass *applyPass, fe *FileError) {
	pass.result.Errors = append(pass.result.Errors, fe)
	if pass.opts.Errors != nil {
		pass.opts.Errors.FileError(fe)
	}
	s.logger.Warn("skipping diff entry", "op", fe.Op, "path", fe.Path, "error", fe.Err)
}

func (s *LibraryService) conflict(pass *applyPass, ce *ConflictError) {
	pass.result.Conflicts = append(pass.result.Conflicts, ce)
	if pass.opts.Conflicts != nil {
		pass.opts.Conflicts.Conflict(ce)
	}
	s.logger.Warn("skipping conflicting diff entry", "hash", ce.Hash, "reason", ce.Reason,
		"existing", ce.ExistingPath, "inserted", ce.InsertedPath)
}
