package database

import (
	"context"
	"database/sql"
	"fmt"

	"libstor/internal/database/sqlc"
	"libstor/internal/libstor"
)

// Operation history. Each call commits so the record survives a crash of
// the operation it describes.

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, op *libstor.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	id, err := q.InsertOperation(ctx, sqlc.InsertOperationParams{
		Operation:  op.Name,
		Parameters: op.Parameters,
		StartedAt:  op.StartedAt,
		Status:     op.Status,
	})
	if err != nil {
		return fmt.Errorf("creating operation: %w", err)
	}
	op.ID = id
	return s.commit()
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, op *libstor.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	err = q.UpdateOperationFinished(ctx, sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: op.FinishedAt, Valid: !op.FinishedAt.IsZero()},
		Status:     op.Status,
		Scanned:    int64(op.Scanned),
		Duplicates: int64(op.Duplicates),
		Errors:     int64(op.Errors),
		ID:         op.ID,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return s.commit()
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*libstor.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.GetOperations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	result := make([]*libstor.Operation, len(rows))
	for i, row := range rows {
		result[i] = &libstor.Operation{
			ID:         row.ID,
			Name:       row.Operation,
			Parameters: row.Parameters,
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt.Time,
			Status:     row.Status,
			Scanned:    int(row.Scanned),
			Duplicates: int(row.Duplicates),
			Errors:     int(row.Errors),
		}
	}
	return result, nil
}
