package libstor

import (
	"context"
	"fmt"
)

// CreateTag creates a tag. parent names an existing tag or is empty for a
// root tag.
func (s *LibraryService) CreateTag(ctx context.Context, name, parent string) (*Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("tag name is empty")
	}
	existing, err := s.database.FindTagByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up tag: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("tag %q already exists", name)
	}

	var parentID int64
	if parent != "" {
		p, err := s.findTag(ctx, parent)
		if err != nil {
			return nil, err
		}
		parentID = p.ID
	}

	tag, err := s.database.CreateTag(ctx, name, parentID)
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flushing store: %w", err)
	}
	s.logger.Info("tag created", "name", name, "id", tag.ID, "parent", parent)
	return tag, nil
}

func (s *LibraryService) ListTags(ctx context.Context) ([]*Tag, error) {
	tags, err := s.database.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag, its children and their file assignments.
func (s *LibraryService) DeleteTag(ctx context.Context, name string) error {
	tag, err := s.findTag(ctx, name)
	if err != nil {
		return err
	}
	if err := s.database.DeleteTag(ctx, tag.ID); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	s.logger.Info("tag deleted", "name", name, "id", tag.ID)
	return nil
}

// AssignTag tags the file stored at rel, a path relative to the library root.
func (s *LibraryService) AssignTag(ctx context.Context, name, rel string) error {
	tag, rec, err := s.tagAndFile(ctx, name, rel)
	if err != nil {
		return err
	}
	if err := s.database.AssignTag(ctx, tag.ID, rec.ID); err != nil {
		return fmt.Errorf("assigning tag: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	s.logger.Debug("tag assigned", "tag", name, "path", rel)
	return nil
}

func (s *LibraryService) UnassignTag(ctx context.Context, name, rel string) error {
	tag, rec, err := s.tagAndFile(ctx, name, rel)
	if err != nil {
		return err
	}
	if err := s.database.UnassignTag(ctx, tag.ID, rec.ID); err != nil {
		return fmt.Errorf("unassigning tag: %w", err)
	}
	if err := s.database.Flush(ctx); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	return nil
}

// FilesForTag lists the active files carrying a tag.
func (s *LibraryService) FilesForTag(ctx context.Context, name string) ([]*FileRecord, error) {
	tag, err := s.findTag(ctx, name)
	if err != nil {
		return nil, err
	}
	files, err := s.database.FilesForTag(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("listing files for tag: %w", err)
	}
	return files, nil
}

func (s *LibraryService) TagsForFile(ctx context.Context, rel string) ([]*Tag, error) {
	rec, err := s.findFile(ctx, rel)
	if err != nil {
		return nil, err
	}
	tags, err := s.database.TagsForFile(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("listing tags for file: %w", err)
	}
	return tags, nil
}

func (s *LibraryService) tagAndFile(ctx context.Context, name, rel string) (*Tag, *FileRecord, error) {
	tag, err := s.findTag(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.findFile(ctx, rel)
	if err != nil {
		return nil, nil, err
	}
	return tag, rec, nil
}

func (s *LibraryService) findTag(ctx context.Context, name string) (*Tag, error) {
	tag, err := s.database.FindTagByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up tag: %w", err)
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q does not exist", name)
	}
	return tag, nil
}

func (s *LibraryService) findFile(ctx context.Context, rel string) (*FileRecord, error) {
	directory, filename := SplitPath(rel)
	rec, err := s.database.FindByLocation(ctx, directory, filename)
	if err != nil {
		return nil, fmt.Errorf("looking up file: %w", err)
	}
	if rec == nil || rec.IsDeleted() {
		return nil, fmt.Errorf("file is not in the library: %s", rel)
	}
	return rec, nil
}
