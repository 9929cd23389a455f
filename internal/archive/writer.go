package archive

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"libstor/internal/libstor"
)

// Options configures a diff package writer.
type Options struct {
	// Compression is "deflate" (default) or "store".
	Compression string
	// Encryptor, when set, encrypts the finished zip.
	Encryptor libstor.Encryptor
	// Modified stamps every entry. Zero means the current time.
	Modified time.Time
}

// Writer builds a diff package at a destination path. Nothing appears at the
// destination until Close succeeds.
type Writer struct {
	path     string
	tmp      *os.File
	zw       *zip.Writer
	method   uint16
	modified time.Time
	enc      libstor.Encryptor

	manifest bytes.Buffer
	mw       *csv.Writer
	stored   map[string]bool
	done     bool
}

var _ libstor.DiffWriter = (*Writer)(nil)

// Create starts a diff package that will be written to path.
func Create(path string, opts Options) (*Writer, error) {
	var method uint16
	switch opts.Compression {
	case "deflate", "":
		method = zip.Deflate
	case "store":
		method = zip.Store
	default:
		return nil, fmt.Errorf("unknown compression: %q", opts.Compression)
	}
	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diff directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".libstor-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	w := &Writer{
		path:     path,
		tmp:      tmp,
		zw:       zip.NewWriter(tmp),
		method:   method,
		modified: modified,
		enc:      opts.Encryptor,
		stored:   make(map[string]bool),
	}
	w.mw = csv.NewWriter(&w.manifest)
	return w, nil
}

func (w *Writer) WriteEntry(e *libstor.DiffEntry) error {
	row, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return w.mw.Write(row)
}

func (w *Writer) AddFile(insertedPath string, r io.Reader) error {
	if err := checkPath(insertedPath); err != nil {
		return err
	}
	if w.stored[insertedPath] {
		return fmt.Errorf("%s already stored", insertedPath)
	}
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     StoragePrefix + insertedPath,
		Method:   w.method,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("creating archive entry: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("storing %s: %w", insertedPath, err)
	}
	w.stored[insertedPath] = true
	return nil
}

// Close writes the manifest and moves the package into place.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	err := w.finish()
	if err != nil {
		w.tmp.Close()
		os.Remove(w.tmp.Name())
	}
	return err
}

// Abort discards the package.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

func (w *Writer) finish() error {
	w.mw.Flush()
	if err := w.mw.Error(); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	mf, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := mf.Write(w.manifest.Bytes()); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("finalizing zip: %w", err)
	}

	src := w.tmp
	if w.enc != nil {
		enc, err := w.encrypt()
		if err != nil {
			return err
		}
		src.Close()
		os.Remove(src.Name())
		src = enc
		w.tmp = enc
	}

	if err := src.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(src.Name(), w.path); err != nil {
		os.Remove(src.Name())
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// encrypt writes the ciphertext of the finished zip to a second temp file.
func (w *Writer) encrypt() (*os.File, error) {
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	out, err := os.CreateTemp(filepath.Dir(w.path), ".libstor-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := w.enc.Encrypt(w.tmp, out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("encrypting diff package: %w", err)
	}
	return out, nil
}
