package libstor

import "io"

// Encryptor protects diff packages in transit between the two locations.
// Encryption uses the public key only. Decryption needs the passphrase that
// unlocks the private key.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext, and
	// encrypts the private key with passphrase. Called by `libstor config keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails on a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for one apply.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
