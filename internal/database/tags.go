package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libstor/internal/database/sqlc"
	"libstor/internal/libstor"
)

func (s *SQLiteDatabase) CreateTag(ctx context.Context, name string, parentID int64) (*libstor.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	row, err := q.InsertTag(ctx, sqlc.InsertTagParams{Name: name, ParentID: nullID(parentID)})
	if err != nil {
		return nil, fmt.Errorf("inserting tag: %w", err)
	}
	return toTag(row), s.wrote()
}

func (s *SQLiteDatabase) InsertTagWithID(ctx context.Context, tag *libstor.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	err = q.InsertTagWithID(ctx, sqlc.InsertTagWithIDParams{
		ID:       tag.ID,
		Name:     tag.Name,
		ParentID: nullID(tag.ParentID),
	})
	if err != nil {
		return fmt.Errorf("inserting tag %d: %w", tag.ID, err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) FindTagByID(ctx context.Context, id int64) (*libstor.Tag, error) {
	return s.findTag(ctx, func(q *sqlc.Queries) (sqlc.Tag, error) { return q.GetTagByID(ctx, id) })
}

func (s *SQLiteDatabase) FindTagByName(ctx context.Context, name string) (*libstor.Tag, error) {
	return s.findTag(ctx, func(q *sqlc.Queries) (sqlc.Tag, error) { return q.GetTagByName(ctx, name) })
}

func (s *SQLiteDatabase) findTag(ctx context.Context, get func(*sqlc.Queries) (sqlc.Tag, error)) (*libstor.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	row, err := get(q)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding tag: %w", err)
	}
	return toTag(row), nil
}

func (s *SQLiteDatabase) ListTags(ctx context.Context) ([]*libstor.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return toTags(rows), nil
}

func (s *SQLiteDatabase) DeleteTag(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	n, err := q.DeleteTag(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tag %d: %w", id, libstor.ErrNotFound)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) AssignTag(ctx context.Context, tagID, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if err := q.InsertFileTag(ctx, sqlc.InsertFileTagParams{TagID: tagID, FileID: fileID}); err != nil {
		return fmt.Errorf("assigning tag: %w", err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) UnassignTag(ctx context.Context, tagID, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if err := q.DeleteFileTag(ctx, sqlc.DeleteFileTagParams{TagID: tagID, FileID: fileID}); err != nil {
		return fmt.Errorf("unassigning tag: %w", err)
	}
	return s.wrote()
}

func (s *SQLiteDatabase) ListFileTags(ctx context.Context) ([]*libstor.FileTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.ListFileTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing file tags: %w", err)
	}
	result := make([]*libstor.FileTag, len(rows))
	for i, row := range rows {
		result[i] = &libstor.FileTag{TagID: row.TagID, FileID: row.FileID}
	}
	return result, nil
}

func (s *SQLiteDatabase) FilesForTag(ctx context.Context, tagID int64) ([]*libstor.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.ListFilesForTag(ctx, tagID)
	if err != nil {
		return nil, fmt.Errorf("listing files for tag: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteDatabase) TagsForFile(ctx context.Context, fileID int64) ([]*libstor.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.ListTagsForFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing tags for file: %w", err)
	}
	return toTags(rows), nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func toTag(t sqlc.Tag) *libstor.Tag {
	return &libstor.Tag{ID: t.ID, Name: t.Name, ParentID: t.ParentID.Int64}
}

func toTags(rows []sqlc.Tag) []*libstor.Tag {
	result := make([]*libstor.Tag, len(rows))
	for i, row := range rows {
		result[i] = toTag(row)
	}
	return result
}
