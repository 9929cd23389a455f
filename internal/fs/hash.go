package fs

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2s"
)

// hashChunkSize is how much of a file is read per hasher update.
const hashChunkSize = 64 * 1024

// HashReader returns the hex BLAKE2s-256 digest of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h, err := blake2s.New256(nil)
	if err != nil {
		return "", fmt.Errorf("creating hasher: %w", err)
	}
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the content fingerprint of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	sum, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return sum, nil
}
