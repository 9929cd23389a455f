package testutil

import (
	"libstor/internal/encryption"
	"libstor/internal/libstor"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() libstor.Encryptor {
	return encryption.NewTestEncryptor()
}
