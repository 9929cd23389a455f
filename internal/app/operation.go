package app

import "libstor/internal/libstor"

// Operation tracks a CLI command that may mutate the store. Operations are
// created in memory; only mutating commands persist them in the history.
type Operation struct {
	Name       string
	Parameters string

	record     *libstor.Operation
	err        error
	scanned    int
	duplicates int
	errors     int
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, parameters string) *Operation {
	return &Operation{Name: name, Parameters: parameters}
}

// Persisted returns true if this operation has been saved to the history.
func (op *Operation) Persisted() bool {
	return op.record != nil && op.record.ID != 0
}

// Failed reports whether a step of the operation returned an error.
func (op *Operation) Failed() bool {
	return op.err != nil
}

// fail remembers the first error of the operation and returns err.
func (op *Operation) fail(err error) error {
	if err != nil && op.err == nil {
		op.err = err
	}
	return err
}

// recordScan adds the counts of a scan pass to the operation.
func (op *Operation) recordScan(res *libstor.ScanResult) {
	if res == nil {
		return
	}
	op.scanned += res.Scanned
	op.duplicates += len(res.Duplicates)
	op.errors += len(res.Errors)
}
