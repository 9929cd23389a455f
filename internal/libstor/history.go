package libstor

import (
	"context"
	"fmt"
)

// Operation statuses.
const (
	OperationRunning   = "running"
	OperationSucceeded = "succeeded"
	OperationFailed    = "failed"
)

// StartOperation records the start of an operation in the history.
func (s *LibraryService) StartOperation(ctx context.Context, name, parameters string) (*Operation, error) {
	op := &Operation{
		Name:       name,
		Parameters: parameters,
		StartedAt:  s.clock.Now(),
		Status:     OperationRunning,
	}
	if err := s.database.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("recording operation: %w", err)
	}
	return op, nil
}

// FinishOperation records the outcome of op. A nil opErr marks it succeeded.
func (s *LibraryService) FinishOperation(ctx context.Context, op *Operation, opErr error) error {
	op.FinishedAt = s.clock.Now()
	op.Status = OperationSucceeded
	if opErr != nil {
		op.Status = OperationFailed
	}
	if err := s.database.FinishOperation(ctx, op); err != nil {
		return fmt.Errorf("recording operation result: %w", err)
	}
	return s.database.Flush(ctx)
}

// GetHistory returns the most recent operations, newest first.
func (s *LibraryService) GetHistory(ctx context.Context, limit int) ([]*Operation, error) {
	ops, err := s.database.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// LibraryStatus summarizes a library's store.
type LibraryStatus struct {
	Active        int
	Pending       int
	Deleted       int
	Tags          int
	LastOperation *Operation
}

func (s *LibraryService) Status(ctx context.Context) (*LibraryStatus, error) {
	counts, err := s.database.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	tags, err := s.database.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	st := &LibraryStatus{
		Active:  counts[StateActive],
		Pending: counts[StatePending],
		Deleted: counts[StateDeleted],
		Tags:    len(tags),
	}
	ops, err := s.database.ListOperations(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	if len(ops) > 0 {
		st.LastOperation = ops[0]
	}
	return st, nil
}
