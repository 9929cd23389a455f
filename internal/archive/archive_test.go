package archive

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"libstor/internal/encryption"
	"libstor/internal/libstor"
)

const (
	hash01 = "4256508e9e2099aa72050b5e00d01745153971e915fa190e4a86079a13ab8e73"
	hash02 = "982dfb44d32c54183e5399ae180a701d70c1434736645eea98c23e6a81b99d1b"
	hash03 = "78f690041494259dbb0ca8e890b9464599f5fc1eeaad20de7c4c16b7761c0039"
)

func sampleEntries() []*libstor.DiffEntry {
	return []*libstor.DiffEntry{
		{Status: libstor.StatusNew, InsertedPath: "dir/file01.txt", Hash: hash01, FileID: 1},
		{Status: libstor.StatusMovedAndRenamed, ExistedPath: "a/x.txt", InsertedPath: "b/y.txt", Hash: hash03, FileID: 4},
		{Status: libstor.StatusDeleted, ExistedPath: "file02.txt", Hash: hash02, FileID: 2},
	}
}

func buildPackage(t *testing.T, path string, opts Options, entries []*libstor.DiffEntry, files map[string]string) {
	t.Helper()
	w, err := Create(path, opts)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, e := range entries {
		if err := w.WriteEntry(e); err != nil {
			t.Fatalf("WriteEntry() error = %v", err)
		}
		if content, ok := files[e.InsertedPath]; ok && e.Status == libstor.StatusNew {
			if err := w.AddFile(e.InsertedPath, strings.NewReader(content)); err != nil {
				t.Fatalf("AddFile() error = %v", err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

// rawZip writes a zip with the given entries in order, bypassing Writer.
func rawZip(t *testing.T, path string, method uint16, entries [][2]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e[0], Method: method})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, e[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compression := range []string{"deflate", "store"} {
		t.Run(compression, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "diff.zip")
			entries := sampleEntries()
			buildPackage(t, path, Options{Compression: compression}, entries, map[string]string{
				"dir/file01.txt": "content01",
			})

			r, err := Open(path, nil)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer r.Close()

			got := r.Entries()
			if len(got) != len(entries) {
				t.Fatalf("Entries() len = %d, want %d", len(got), len(entries))
			}
			for i := range entries {
				if *got[i] != *entries[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], entries[i])
				}
			}

			rc, err := r.OpenFile("dir/file01.txt")
			if err != nil {
				t.Fatalf("OpenFile() error = %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if string(data) != "content01" {
				t.Errorf("stored bytes = %q, want %q", data, "content01")
			}
			if _, err := r.OpenFile("missing.txt"); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("OpenFile(missing) error = %v, want ErrNotExist", err)
			}
		})
	}
}

func TestRoundTrip_UnusualNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.zip")
	entries := []*libstor.DiffEntry{
		{Status: libstor.StatusNew, InsertedPath: `raw/a\b.txt`, Hash: hash01, FileID: 1},
		{Status: libstor.StatusNew, InsertedPath: `odd, "quoted".txt`, Hash: hash02, FileID: 2},
	}
	files := map[string]string{
		`raw/a\b.txt`:       "content01",
		`odd, "quoted".txt`: "content02",
	}
	buildPackage(t, path, Options{}, entries, files)

	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	for i, e := range r.Entries() {
		if *e != *entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, entries[i])
		}
		rc, err := r.OpenFile(e.InsertedPath)
		if err != nil {
			t.Fatalf("OpenFile(%q) error = %v", e.InsertedPath, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != files[e.InsertedPath] {
			t.Errorf("OpenFile(%q) = %q, want %q", e.InsertedPath, data, files[e.InsertedPath])
		}
	}
}

func TestCheckPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"a.txt", false},
		{"dir/sub/a.txt", false},
		{`dir\a.txt`, false},
		{`..\a.txt`, false},
		{"", true},
		{"/etc/passwd", true},
		{"../a.txt", true},
		{"dir/../../a.txt", true},
		{"./a.txt", true},
		{"dir//a.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if err := checkPath(tt.path); (err != nil) != tt.wantErr {
				t.Errorf("checkPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestManifestFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.zip")
	buildPackage(t, path, Options{}, sampleEntries(), map[string]string{"dir/file01.txt": "content01"})

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var manifest string
	for _, f := range zr.File {
		if f.Name == ManifestName {
			rc, _ := f.Open()
			b, _ := io.ReadAll(rc)
			rc.Close()
			manifest = string(b)
		}
	}
	want := "NEW,,dir/file01.txt," + hash01 + ",1\n" +
		"MOVED_AND_RENAMED,a/x.txt,b/y.txt," + hash03 + ",4\n" +
		"DELETED,file02.txt,," + hash02 + ",2\n"
	if manifest != want {
		t.Errorf("manifest =\n%s\nwant\n%s", manifest, want)
	}
}

func TestOpen_LegacyStatuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.zip")
	rawZip(t, path, zip.Deflate, [][2]string{
		{"storage/file01.txt", "content01"},
		{ManifestName, "Новый,,file01.txt," + hash01 + ",1\n" +
			"Переименовали,a.txt,b.txt," + hash03 + ",3\n" +
			"Удалён,file02.txt,," + hash02 + ",2\n"},
	})

	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	want := []libstor.FileStatus{libstor.StatusNew, libstor.StatusRenamed, libstor.StatusDeleted}
	for i, e := range r.Entries() {
		if e.Status != want[i] {
			t.Errorf("entry %d status = %v, want %v", i, e.Status, want[i])
		}
	}
}

func TestOpen_Corruption(t *testing.T) {
	newRow := "NEW,,file01.txt," + hash01 + ",1\n"
	tests := []struct {
		name    string
		entries [][2]string
	}{
		{"missing manifest", [][2]string{{"storage/file01.txt", "content01"}}},
		{"missing stored file", [][2]string{{ManifestName, newRow}}},
		{"hash mismatch", [][2]string{{"storage/file01.txt", "tampered"}, {ManifestName, newRow}}},
		{"unknown status", [][2]string{{ManifestName, "COPIED,a,b," + hash01 + ",1\n"}}},
		{"short row", [][2]string{{ManifestName, "DELETED,a.txt," + hash01 + "\n"}}},
		{"bad id", [][2]string{{ManifestName, "DELETED,a.txt,," + hash01 + ",one\n"}}},
		{"deleted without path", [][2]string{{ManifestName, "DELETED,,," + hash01 + ",1\n"}}},
		{"escaping path", [][2]string{{ManifestName, "MOVED,a.txt,../b.txt," + hash01 + ",1\n"}}},
		{"absolute path", [][2]string{{ManifestName, "DELETED,/etc/passwd,," + hash01 + ",1\n"}}},
		{"escaping stored file", [][2]string{{"storage/../evil", "x"}, {ManifestName, ""}}},
		{"unexpected entry", [][2]string{{"extra.txt", "x"}, {ManifestName, ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "diff.zip")
			rawZip(t, path, zip.Deflate, tt.entries)

			_, err := Open(path, nil)
			var ae *libstor.ArchiveError
			if !errors.As(err, &ae) {
				t.Fatalf("Open() error = %v, want ArchiveError", err)
			}
		})
	}

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "diff.zip")
		if err := os.WriteFile(path, []byte("plain text, not an archive"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(path, nil)
		var ae *libstor.ArchiveError
		if !errors.As(err, &ae) {
			t.Fatalf("Open() error = %v, want ArchiveError", err)
		}
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "diff.zip")
		rawZip(t, path, zip.Store, [][2]string{
			{"storage/file01.txt", "content01"},
			{ManifestName, newRow},
		})
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		i := bytes.Index(data, []byte("content01"))
		if i < 0 {
			t.Fatal("stored bytes not found in archive")
		}
		data[i+len("content0")] = 'X'
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}

		_, err = Open(path, nil)
		var ae *libstor.ArchiveError
		if !errors.As(err, &ae) {
			t.Fatalf("Open() error = %v, want ArchiveError", err)
		}
	})
}

func TestWriter_Rejects(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "diff.zip"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Abort()

	if err := w.WriteEntry(&libstor.DiffEntry{Status: libstor.StatusDuplicate, Hash: hash01}); err == nil {
		t.Error("WriteEntry(duplicate) expected error")
	}
	if err := w.AddFile("../escape.txt", strings.NewReader("x")); err == nil {
		t.Error("AddFile(../escape.txt) expected error")
	}
	if err := w.AddFile("a.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.AddFile("a.txt", strings.NewReader("x")); err == nil {
		t.Error("second AddFile(a.txt) expected error")
	}
	if _, err := Create(filepath.Join(dir, "x.zip"), Options{Compression: "zstd"}); err == nil {
		t.Error("Create() with unknown compression expected error")
	}
}

func TestWriter_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diff.zip")
	w, err := Create(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile("a.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after Abort: %v", entries)
	}
}

func TestEncryptedPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.zip")
	enc := encryption.NewTestEncryptor()
	buildPackage(t, path, Options{Encryptor: enc}, sampleEntries(), map[string]string{"dir/file01.txt": "content01"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !encryption.IsEncrypted(data[:encryption.PeekSize]) {
		t.Fatal("package is not encrypted")
	}

	if _, err := Open(path, nil); !errors.Is(err, ErrEncrypted) {
		t.Fatalf("Open() without key error = %v, want ErrEncrypted", err)
	}

	unlocked := false
	r, err := Open(path, func() (libstor.DecryptionContext, error) {
		unlocked = true
		return enc.Unlock("")
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !unlocked {
		t.Error("unlock was not called")
	}
	if len(r.Entries()) != 3 {
		t.Errorf("Entries() len = %d, want 3", len(r.Entries()))
	}
	tmp := r.tmpPath
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("decrypted copy %s left behind", tmp)
	}
}

func TestOpen_PlainPackageSkipsUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.zip")
	buildPackage(t, path, Options{}, sampleEntries(), map[string]string{"dir/file01.txt": "content01"})

	r, err := Open(path, func() (libstor.DecryptionContext, error) {
		t.Error("unlock called for a plain package")
		return nil, errors.New("unexpected")
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	r.Close()
}

func TestParseStatus(t *testing.T) {
	for s, name := range statusNames {
		got, err := ParseStatus(name)
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", name, got, err, s)
		}
		formatted, err := FormatStatus(s)
		if err != nil || formatted != name {
			t.Errorf("FormatStatus(%v) = %q, %v; want %q", s, formatted, err, name)
		}
	}
	if _, err := FormatStatus(libstor.StatusUntouched); err == nil {
		t.Error("FormatStatus(untouched) expected error")
	}
	if got, err := ParseStatus("Переместили и переименовали"); err != nil || got != libstor.StatusMovedAndRenamed {
		t.Errorf("ParseStatus(legacy) = %v, %v", got, err)
	}
}
