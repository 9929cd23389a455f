package libstor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultPageSize is the number of records per snapshot page.
const DefaultPageSize = 100

// ExportSnapshot writes all active records, ordered by filename then id, to
// w in pages of pageSize records, followed by the tag tables. At least one
// page is always written. It returns the number of records written.
func (s *LibraryService) ExportSnapshot(ctx context.Context, w StructureWriter, pageSize int, progress ProgressSink) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	progress = progressOrNop(progress)

	ctx, span := tracer.Start(ctx, "libstor.ExportSnapshot")
	defer span.End()

	total, err := s.database.CountActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	page := 1
	if err := w.OpenPage(page); err != nil {
		return 0, fmt.Errorf("opening page %d: %w", page, err)
	}
	written := 0
	err = s.pageRecords(total, func(offset, limit int) ([]*FileRecord, error) {
		return s.database.PageActive(ctx, OrderByFilename, offset, limit)
	}, func(rec *FileRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if written > 0 && written%pageSize == 0 {
			if err := w.ClosePage(false); err != nil {
				return fmt.Errorf("closing page %d: %w", page, err)
			}
			progress.Progress(written, total, page)
			page++
			if err := w.OpenPage(page); err != nil {
				return fmt.Errorf("opening page %d: %w", page, err)
			}
		}
		if err := w.WriteRecord(rec); err != nil {
			return fmt.Errorf("writing record %d: %w", rec.ID, err)
		}
		written++
		return nil
	})
	if err != nil {
		return written, err
	}
	if err := w.ClosePage(true); err != nil {
		return written, fmt.Errorf("closing page %d: %w", page, err)
	}
	progress.Progress(written, total, page)

	tags, err := s.database.ListTags(ctx)
	if err != nil {
		return written, fmt.Errorf("listing tags: %w", err)
	}
	if err := w.WriteTags(tags); err != nil {
		return written, fmt.Errorf("writing tags: %w", err)
	}
	fileTags, err := s.database.ListFileTags(ctx)
	if err != nil {
		return written, fmt.Errorf("listing file tags: %w", err)
	}
	if err := w.WriteFileTags(fileTags); err != nil {
		return written, fmt.Errorf("writing file tags: %w", err)
	}

	span.SetAttributes(attribute.Int("libstor.records", written), attribute.Int("libstor.pages", page))
	s.logger.Info("snapshot exported", "records", written, "pages", page, "tags", len(tags))
	return written, nil
}

// ImportSnapshot loads a snapshot into the store, keeping record ids. A hash
// or id that is already present aborts the import with a ConflictError and
// leaves the store as it was.
func (s *LibraryService) ImportSnapshot(ctx context.Context, r StructureReader, progress ProgressSink) (int, error) {
	progress = progressOrNop(progress)

	ctx, span := tracer.Start(ctx, "libstor.ImportSnapshot")
	defer span.End()

	imported, tags := 0, 0
	err := s.database.Atomically(ctx, func(ctx context.Context) error {
		var err error
		imported, tags, err = s.importRows(ctx, r, progress)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("libstor.records", imported))
	s.logger.Info("snapshot imported", "records", imported, "tags", tags)
	return imported, nil
}

// importRows inserts the snapshot's records, tags and assignments. Any error
// makes the caller discard everything written so far.
func (s *LibraryService) importRows(ctx context.Context, r StructureReader, progress ProgressSink) (int, int, error) {
	imported := 0
	err := r.ReadRecords(ctx, func(rec *FileRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.checkImportConflict(ctx, rec); err != nil {
			return err
		}
		rec.State = StateActive
		if err := s.database.InsertWithID(ctx, rec); err != nil {
			return fmt.Errorf("inserting record %d: %w", rec.ID, err)
		}
		imported++
		progress.Progress(imported, 0, 0)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	tags := 0
	err = r.ReadTags(func(tag *Tag) error {
		if err := s.database.InsertTagWithID(ctx, tag); err != nil {
			return fmt.Errorf("inserting tag %q: %w", tag.Name, err)
		}
		tags++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	err = r.ReadFileTags(func(ft *FileTag) error {
		if err := s.database.AssignTag(ctx, ft.TagID, ft.FileID); err != nil {
			return fmt.Errorf("assigning tag %d to file %d: %w", ft.TagID, ft.FileID, err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return imported, tags, nil
}

func (s *LibraryService) checkImportConflict(ctx context.Context, rec *FileRecord) error {
	existing, err := s.database.FindByHash(ctx, rec.Hash)
	if err != nil {
		return fmt.Errorf("looking up hash: %w", err)
	}
	if existing != nil {
		return &ConflictError{
			Hash:         rec.Hash,
			ExistingPath: existing.Path(),
			InsertedPath: rec.Path(),
			Reason:       "hash already present",
		}
	}
	existing, err = s.database.FindByID(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("looking up id: %w", err)
	}
	if existing != nil {
		return &ConflictError{
			Hash:         rec.Hash,
			ExistingPath: existing.Path(),
			InsertedPath: rec.Path(),
			Reason:       fmt.Sprintf("id %d already used", rec.ID),
		}
	}
	return nil
}
