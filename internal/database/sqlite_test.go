package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"libstor/internal/libstor"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T, batchSize int) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", batchSize)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func observe(t *testing.T, db *SQLiteDatabase, hash, dir, name string) *libstor.Observation {
	t.Helper()
	obs, err := db.Observe(context.Background(), hash, dir, name)
	if err != nil {
		t.Fatalf("Observe(%s) error = %v", hash, err)
	}
	return obs
}

func TestSQLiteDatabase_Observe(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts unknown hash as new", func(t *testing.T) {
		db := newTestDB(t, 0)
		obs := observe(t, db, "h1", "docs", "a.txt")
		if obs.Status != libstor.StatusNew {
			t.Errorf("Status = %v, want new", obs.Status)
		}
		if obs.Record.ID == 0 {
			t.Error("expected an assigned id")
		}
		rec, err := db.FindByHash(ctx, "h1")
		if err != nil || rec == nil {
			t.Fatalf("FindByHash() = %v, %v", rec, err)
		}
		if rec.Path() != "docs/a.txt" || rec.State != libstor.StateActive {
			t.Errorf("stored record = %+v", rec)
		}
	})

	t.Run("same location twice is untouched", func(t *testing.T) {
		db := newTestDB(t, 0)
		first := observe(t, db, "h1", "", "a.txt")
		second := observe(t, db, "h1", "", "a.txt")
		if second.Status != libstor.StatusUntouched {
			t.Errorf("Status = %v, want untouched", second.Status)
		}
		if second.Record.ID != first.Record.ID {
			t.Errorf("id changed from %d to %d", first.Record.ID, second.Record.ID)
		}
	})

	t.Run("classifies relocation and keeps stored location", func(t *testing.T) {
		tests := []struct {
			dir, name string
			want      libstor.FileStatus
		}{
			{"docs", "b.txt", libstor.StatusRenamed},
			{"other", "a.txt", libstor.StatusMoved},
			{"other", "b.txt", libstor.StatusMovedAndRenamed},
		}
		for _, tt := range tests {
			db := newTestDB(t, 0)
			observe(t, db, "h1", "docs", "a.txt")
			obs := observe(t, db, "h1", tt.dir, tt.name)
			if obs.Status != tt.want {
				t.Errorf("Observe(%s/%s) status = %v, want %v", tt.dir, tt.name, obs.Status, tt.want)
			}
			if obs.Record.Path() != "docs/a.txt" {
				t.Errorf("Observe(%s/%s) record path = %s, want docs/a.txt", tt.dir, tt.name, obs.Record.Path())
			}
			rec, _ := db.FindByHash(ctx, "h1")
			if rec.Path() != "docs/a.txt" {
				t.Errorf("stored location rewritten to %s", rec.Path())
			}
		}
	})

	t.Run("revives pending and deleted rows", func(t *testing.T) {
		db := newTestDB(t, 0)
		observe(t, db, "h1", "", "a.txt")
		observe(t, db, "h2", "", "b.txt")
		if err := db.MarkAllPending(ctx); err != nil {
			t.Fatal(err)
		}
		obs := observe(t, db, "h1", "", "a.txt")
		if obs.PrevState != libstor.StatePending {
			t.Errorf("PrevState = %v, want pending", obs.PrevState)
		}
		if err := db.FinishPass(ctx); err != nil {
			t.Fatal(err)
		}
		rec, _ := db.FindByHash(ctx, "h2")
		if rec.State != libstor.StateDeleted {
			t.Fatalf("h2 state = %v, want deleted", rec.State)
		}

		obs = observe(t, db, "h2", "moved", "b.txt")
		if obs.PrevState != libstor.StateDeleted || obs.Status != libstor.StatusMoved {
			t.Errorf("revival = %+v", obs)
		}
		rec, _ = db.FindByHash(ctx, "h2")
		if rec.State != libstor.StateActive {
			t.Errorf("h2 state after revival = %v, want active", rec.State)
		}
	})
}

func TestSQLiteDatabase_ScanPass(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 0)
	for _, name := range []string{"a", "b", "c"} {
		observe(t, db, name, "", name+".txt")
	}
	if err := db.MarkAllPending(ctx); err != nil {
		t.Fatal(err)
	}
	observe(t, db, "b", "", "b.txt")

	n, err := db.CountPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountPending() = %d, %v; want 2", n, err)
	}
	pending, err := db.PagePending(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].Hash != "a" || pending[1].Hash != "c" {
		t.Errorf("PagePending() = %v", pending)
	}

	if err := db.FinishPass(ctx); err != nil {
		t.Fatal(err)
	}
	counts, err := db.CountByState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[libstor.StateActive] != 1 || counts[libstor.StateDeleted] != 2 || counts[libstor.StatePending] != 0 {
		t.Errorf("CountByState() = %v", counts)
	}

	// A second pass leaves rows deleted earlier alone.
	if err := db.MarkAllPending(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ = db.CountPending(ctx)
	if n != 1 {
		t.Errorf("CountPending() on second pass = %d, want 1", n)
	}
}

func TestSQLiteDatabase_PageActive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 0)
	observe(t, db, "h1", "z", "b.txt")
	observe(t, db, "h2", "a", "c.txt")
	observe(t, db, "h3", "", "a.txt")
	observe(t, db, "h4", "y", "b.txt")

	var got []string
	for offset := 0; ; offset += 3 {
		page, err := db.PageActive(ctx, libstor.OrderByFilename, offset, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			got = append(got, rec.Hash)
		}
	}
	want := []string{"h3", "h1", "h4", "h2"}
	if len(got) != len(want) {
		t.Fatalf("PageActive() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PageActive() = %v, want %v", got, want)
		}
	}

	byID, err := db.PageActive(ctx, libstor.OrderByID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if byID[0].Hash != "h1" || byID[3].Hash != "h4" {
		t.Errorf("PageActive(OrderByID) = %v", byID)
	}
}

func TestSQLiteDatabase_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("insert with id keeps the id", func(t *testing.T) {
		db := newTestDB(t, 0)
		rec := &libstor.FileRecord{ID: 42, Hash: "h", Directory: "d", Filename: "f", State: libstor.StateActive}
		if err := db.InsertWithID(ctx, rec); err != nil {
			t.Fatal(err)
		}
		got, _ := db.FindByID(ctx, 42)
		if got == nil || got.Hash != "h" {
			t.Fatalf("FindByID(42) = %v", got)
		}
		if err := db.InsertWithID(ctx, &libstor.FileRecord{ID: 43, Hash: "h", State: libstor.StateActive}); err == nil {
			t.Error("expected unique violation for duplicate hash")
		}
		// New rows continue after the highest imported id.
		obs := observe(t, db, "other", "", "o.txt")
		if obs.Record.ID <= 42 {
			t.Errorf("new id = %d, want > 42", obs.Record.ID)
		}
	})

	t.Run("rename and delete report missing rows", func(t *testing.T) {
		db := newTestDB(t, 0)
		if err := db.RenameRow(ctx, "nope", "", "x"); !errors.Is(err, libstor.ErrNotFound) {
			t.Errorf("RenameRow() error = %v, want ErrNotFound", err)
		}
		if err := db.DeleteRow(ctx, "nope"); !errors.Is(err, libstor.ErrNotFound) {
			t.Errorf("DeleteRow() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("update location and find by location", func(t *testing.T) {
		db := newTestDB(t, 0)
		observe(t, db, "h", "a", "x.txt")
		if err := db.UpdateLocation(ctx, "h", "b", "y.txt"); err != nil {
			t.Fatal(err)
		}
		rec, err := db.FindByLocation(ctx, "b", "y.txt")
		if err != nil || rec == nil || rec.Hash != "h" {
			t.Fatalf("FindByLocation() = %v, %v", rec, err)
		}
		rec, _ = db.FindByLocation(ctx, "a", "x.txt")
		if rec != nil {
			t.Errorf("old location still found: %v", rec)
		}
	})
}

func TestSQLiteDatabase_Batching(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 2)

	observe(t, db, "h1", "", "a")
	if db.tx == nil {
		t.Fatal("expected an open transaction after one write")
	}
	observe(t, db, "h2", "", "b")
	if db.tx != nil {
		t.Fatal("expected the batch to be committed after two writes")
	}
	observe(t, db, "h3", "", "c")
	if err := db.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if db.tx != nil {
		t.Error("Flush() left the transaction open")
	}
	n, _ := db.CountActive(ctx)
	if n != 3 {
		t.Errorf("CountActive() = %d, want 3", n)
	}
}

func TestSQLiteDatabase_RestorePending(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 1)
	for _, name := range []string{"a", "b", "c"} {
		observe(t, db, name, "", name+".txt")
	}
	if err := db.MarkAllPending(ctx); err != nil {
		t.Fatal(err)
	}
	observe(t, db, "a", "", "a.txt")
	observe(t, db, "b", "", "b.txt")
	if err := db.FinishPass(ctx); err != nil {
		t.Fatal(err)
	}
	observe(t, db, "d", "", "d.txt")
	if err := db.MarkAllPending(ctx); err != nil {
		t.Fatal(err)
	}
	observe(t, db, "a", "", "a.txt")

	if err := db.RestorePending(ctx); err != nil {
		t.Fatalf("RestorePending() error = %v", err)
	}
	counts, err := db.CountByState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[libstor.StateActive] != 3 || counts[libstor.StatePending] != 0 || counts[libstor.StateDeleted] != 1 {
		t.Errorf("CountByState() = %v, want 3 active, 1 deleted and none pending", counts)
	}
}

func TestSQLiteDatabase_Atomically(t *testing.T) {
	ctx := context.Background()
	errStop := errors.New("stop")

	t.Run("rolls back every write on error", func(t *testing.T) {
		db := newTestDB(t, 1)
		observe(t, db, "h1", "", "a")
		err := db.Atomically(ctx, func(ctx context.Context) error {
			observe(t, db, "h2", "", "b")
			observe(t, db, "h3", "", "c")
			if err := db.Flush(ctx); err != nil {
				return err
			}
			return errStop
		})
		if !errors.Is(err, errStop) {
			t.Fatalf("Atomically() error = %v, want %v", err, errStop)
		}
		n, _ := db.CountActive(ctx)
		if n != 1 {
			t.Errorf("CountActive() = %d, want 1", n)
		}
		if rec, _ := db.FindByHash(ctx, "h2"); rec != nil {
			t.Errorf("FindByHash(h2) = %+v, want nil", rec)
		}
	})

	t.Run("commits on success", func(t *testing.T) {
		db := newTestDB(t, 100)
		observe(t, db, "h1", "", "a")
		err := db.Atomically(ctx, func(ctx context.Context) error {
			observe(t, db, "h2", "", "b")
			return nil
		})
		if err != nil {
			t.Fatalf("Atomically() error = %v", err)
		}
		if db.tx != nil {
			t.Error("Atomically() left the transaction open")
		}
		n, _ := db.CountActive(ctx)
		if n != 2 {
			t.Errorf("CountActive() = %d, want 2", n)
		}
	})

	t.Run("rejects nesting", func(t *testing.T) {
		db := newTestDB(t, 1)
		var inner error
		err := db.Atomically(ctx, func(ctx context.Context) error {
			inner = db.Atomically(ctx, func(context.Context) error { return nil })
			return nil
		})
		if err != nil {
			t.Fatalf("Atomically() error = %v", err)
		}
		if inner == nil {
			t.Error("nested Atomically() succeeded")
		}
	})
}

func TestSQLiteDatabase_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lib.db")

	db, err := NewSQLiteDatabase(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.db.Exec(Schema); err != nil {
		t.Fatal(err)
	}
	observe(t, db, "h1", "", "a.txt")
	// Close commits the open batch.
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteDatabase(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	rec, err := reopened.FindByHash(ctx, "h1")
	if err != nil || rec == nil {
		t.Errorf("FindByHash() after reopen = %v, %v", rec, err)
	}
}

func TestSQLiteDatabase_Tags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 0)

	parent, err := db.CreateTag(ctx, "travel", 0)
	if err != nil {
		t.Fatal(err)
	}
	child, err := db.CreateTag(ctx, "italy", parent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentID != parent.ID {
		t.Errorf("ParentID = %d, want %d", child.ParentID, parent.ID)
	}
	if _, err := db.CreateTag(ctx, "travel", 0); err == nil {
		t.Error("expected unique violation for duplicate tag name")
	}

	obs := observe(t, db, "h1", "", "rome.jpg")
	if err := db.AssignTag(ctx, child.ID, obs.Record.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.AssignTag(ctx, child.ID, obs.Record.ID); err != nil {
		t.Errorf("repeated AssignTag() error = %v", err)
	}

	files, err := db.FilesForTag(ctx, child.ID)
	if err != nil || len(files) != 1 || files[0].Hash != "h1" {
		t.Errorf("FilesForTag() = %v, %v", files, err)
	}
	tags, err := db.TagsForFile(ctx, obs.Record.ID)
	if err != nil || len(tags) != 1 || tags[0].Name != "italy" {
		t.Errorf("TagsForFile() = %v, %v", tags, err)
	}

	found, _ := db.FindTagByName(ctx, "italy")
	if found == nil || found.ID != child.ID {
		t.Errorf("FindTagByName() = %v", found)
	}
	missing, err := db.FindTagByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("FindTagByID(999) = %v, %v", missing, err)
	}

	// Deleting the parent removes the child and its assignments.
	if err := db.DeleteTag(ctx, parent.ID); err != nil {
		t.Fatal(err)
	}
	all, _ := db.ListTags(ctx)
	if len(all) != 0 {
		t.Errorf("ListTags() after delete = %v", all)
	}
	fileTags, _ := db.ListFileTags(ctx)
	if len(fileTags) != 0 {
		t.Errorf("ListFileTags() after delete = %v", fileTags)
	}
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 0)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	op := &libstor.Operation{Name: "scan", Parameters: "/photos", StartedAt: started, Status: "running"}
	if err := db.CreateOperation(ctx, op); err != nil {
		t.Fatal(err)
	}
	if op.ID == 0 {
		t.Fatal("expected an id")
	}
	second := &libstor.Operation{Name: "export", StartedAt: started.Add(time.Hour), Status: "running"}
	if err := db.CreateOperation(ctx, second); err != nil {
		t.Fatal(err)
	}

	op.FinishedAt = started.Add(time.Minute)
	op.Status = "succeeded"
	op.Scanned = 12
	op.Duplicates = 2
	if err := db.FinishOperation(ctx, op); err != nil {
		t.Fatal(err)
	}

	ops, err := db.ListOperations(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 || ops[0].Name != "export" {
		t.Fatalf("ListOperations() = %v", ops)
	}
	got := ops[1]
	if got.Status != "succeeded" || got.Scanned != 12 || got.Duplicates != 2 {
		t.Errorf("finished operation = %+v", got)
	}
	if !got.StartedAt.Equal(started) || !got.FinishedAt.Equal(op.FinishedAt) {
		t.Errorf("times = %v / %v", got.StartedAt, got.FinishedAt)
	}
	if !ops[0].FinishedAt.IsZero() {
		t.Errorf("running operation has finish time %v", ops[0].FinishedAt)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, 0)
	observe(t, db, "h1", "docs", "a.txt")

	destPath := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(destPath); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	backup, err := NewSQLiteDatabase(destPath, 0)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backup.Close()

	rec, err := backup.FindByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if rec == nil {
		t.Error("backup does not contain the record")
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	t.Run("fails on DB without migrations applied", func(t *testing.T) {
		db, err := NewSQLiteDatabase(":memory:", 0)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error for missing schema")
		}
	})
}
