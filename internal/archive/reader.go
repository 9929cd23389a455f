package archive

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"libstor/internal/encryption"
	"libstor/internal/fs"
	"libstor/internal/libstor"
)

// ErrEncrypted is returned by Open for an encrypted package when no way to
// unlock it was given.
var ErrEncrypted = errors.New("diff package is encrypted")

// Unlocker returns the key for an encrypted package. It is only called when
// the package turns out to be encrypted.
type Unlocker func() (libstor.DecryptionContext, error)

// Reader is an opened and verified diff package.
type Reader struct {
	file    *os.File
	tmpPath string
	zr      *zip.Reader
	entries []*libstor.DiffEntry
	files   map[string]*zip.File
}

var _ libstor.DiffReader = (*Reader)(nil)

// Open opens the package at path and verifies it completely before
// returning: every entry must pass its checksum, the manifest must parse,
// and every new file must be stored with the content its hash names.
// Verification failures are *libstor.ArchiveError.
func Open(path string, unlock Unlocker) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open diff package: %w", err)
	}
	r := &Reader{file: f}

	if err := r.open(unlock); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.verify(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) open(unlock Unlocker) error {
	prefix := make([]byte, encryption.PeekSize)
	n, err := io.ReadFull(r.file, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading diff package: %w", err)
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if encryption.IsEncrypted(prefix[:n]) {
		if unlock == nil {
			return ErrEncrypted
		}
		if err := r.decrypt(unlock); err != nil {
			return err
		}
	}

	info, err := r.file.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(r.file, info.Size())
	if err != nil {
		return &libstor.ArchiveError{Reason: "not a zip archive", Err: err}
	}
	r.zr = zr
	return nil
}

// decrypt replaces the package file with a decrypted temp copy.
func (r *Reader) decrypt(unlock Unlocker) error {
	dc, err := unlock()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "libstor-diff-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	r.tmpPath = tmp.Name()
	if err := dc.Decrypt(r.file, tmp); err != nil {
		tmp.Close()
		return &libstor.ArchiveError{Reason: "decryption failed", Err: err}
	}
	r.file.Close()
	r.file = tmp
	_, err = tmp.Seek(0, io.SeekStart)
	return err
}

func (r *Reader) verify() error {
	r.files = make(map[string]*zip.File)
	var manifest *zip.File
	hashes := make(map[string]string)

	for _, zf := range r.zr.File {
		switch {
		case zf.Name == ManifestName:
			manifest = zf
		case strings.HasPrefix(zf.Name, StoragePrefix):
			rel := strings.TrimPrefix(zf.Name, StoragePrefix)
			if err := checkPath(rel); err != nil {
				return &libstor.ArchiveError{Reason: "bad stored file name", Err: err}
			}
			hash, err := hashEntry(zf)
			if err != nil {
				return &libstor.ArchiveError{Reason: "reading " + zf.Name, Err: err}
			}
			r.files[rel] = zf
			hashes[rel] = hash
		case strings.HasSuffix(zf.Name, "/"):
			// directory entries added by other zip tools
		default:
			return &libstor.ArchiveError{Reason: "unexpected entry " + zf.Name}
		}
	}
	if manifest == nil {
		return &libstor.ArchiveError{Reason: "missing " + ManifestName}
	}

	entries, err := readManifest(manifest)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Status != libstor.StatusNew {
			continue
		}
		got, ok := hashes[e.InsertedPath]
		if !ok {
			return &libstor.ArchiveError{Reason: "no stored bytes for new file " + e.InsertedPath}
		}
		if got != e.Hash {
			return &libstor.ArchiveError{Reason: fmt.Sprintf("stored bytes of %s hash to %s, manifest says %s", e.InsertedPath, got, e.Hash)}
		}
	}
	r.entries = entries
	return nil
}

// hashEntry reads zf to the end, which also checks its CRC.
func hashEntry(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return fs.HashReader(rc)
}

func readManifest(zf *zip.File) ([]*libstor.DiffEntry, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, &libstor.ArchiveError{Reason: "opening manifest", Err: err}
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.FieldsPerRecord = -1
	var entries []*libstor.DiffEntry
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, &libstor.ArchiveError{Reason: "reading manifest", Err: err}
		}
		e, err := decodeEntry(row)
		if err != nil {
			return nil, &libstor.ArchiveError{Reason: fmt.Sprintf("manifest line %d", line), Err: err}
		}
		entries = append(entries, e)
	}
}

// Entries returns the manifest in file order.
func (r *Reader) Entries() []*libstor.DiffEntry {
	return r.entries
}

// OpenFile opens the stored bytes of a new file.
func (r *Reader) OpenFile(insertedPath string) (io.ReadCloser, error) {
	zf, ok := r.files[insertedPath]
	if !ok {
		return nil, fmt.Errorf("%s: %w", insertedPath, os.ErrNotExist)
	}
	return zf.Open()
}

// Close releases the package and removes any decrypted copy.
func (r *Reader) Close() error {
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	if r.tmpPath != "" {
		os.Remove(r.tmpPath)
		r.tmpPath = ""
	}
	return err
}
