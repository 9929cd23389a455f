package app

import (
	"errors"
	"testing"

	"libstor/internal/libstor"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "Scan",
			parameters: "/home/user/books",
		},
		{
			name:       "empty parameters",
			operation:  "TagAdd",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Failed() {
				t.Error("Failed() = true for a new operation")
			}
			if op.Persisted() {
				t.Error("Persisted() = true for a new operation")
			}
		})
	}
}

func TestOperation_Persisted(t *testing.T) {
	tests := []struct {
		name   string
		record *libstor.Operation
		want   bool
	}{
		{name: "no record", record: nil, want: false},
		{name: "record without id", record: &libstor.Operation{}, want: false},
		{name: "persisted when ID is positive", record: &libstor.Operation{ID: 1}, want: true},
		{name: "persisted when ID is large", record: &libstor.Operation{ID: 99999}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{record: tt.record}
			if got := op.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("Scan", "")
	if err := op.fail(nil); err != nil {
		t.Fatalf("fail(nil) = %v", err)
	}
	if op.Failed() {
		t.Fatal("Failed() = true after nil error")
	}

	first := errors.New("first")
	second := errors.New("second")
	if err := op.fail(first); err != first {
		t.Errorf("fail() returned %v, want the given error", err)
	}
	op.fail(second)
	if op.err != first {
		t.Errorf("err = %v, want first error kept", op.err)
	}
}

func TestOperation_RecordScan(t *testing.T) {
	op := NewOperation("MakeDiff", "")
	op.recordScan(nil)
	op.recordScan(&libstor.ScanResult{
		Scanned:    5,
		Duplicates: []*libstor.Duplicate{{}},
		Errors:     []*libstor.FileError{{}, {}},
	})
	op.recordScan(&libstor.ScanResult{Scanned: 2})

	if op.scanned != 7 || op.duplicates != 1 || op.errors != 2 {
		t.Errorf("counts = %d/%d/%d, want 7/1/2", op.scanned, op.duplicates, op.errors)
	}
}
