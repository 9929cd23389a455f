package encryption

import (
	"bytes"
	"fmt"

	"libstor/internal/config"
	"libstor/internal/libstor"
)

// ageHeader starts every age file.
var ageHeader = []byte("age-encryption.org/v1\n")

// PeekSize is the number of leading bytes IsEncrypted needs.
var PeekSize = max(len(ageHeader), len(testHeader))

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. Type "none" returns a nil Encryptor.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (libstor.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

// IsEncrypted reports whether prefix starts a file produced by one of the
// encryptors in this package.
func IsEncrypted(prefix []byte) bool {
	return bytes.HasPrefix(prefix, ageHeader) || bytes.HasPrefix(prefix, testHeader)
}
