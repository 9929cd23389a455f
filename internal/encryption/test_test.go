package encryption

import (
	"bytes"
	"strings"
	"testing"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "manifest text", input: []byte("NEW,,a.txt,abc,1\n")},
		{name: "empty", input: []byte{}},
		{name: "binary", input: []byte{0x00, 0xff, 0x50, 0x4b}},
		{name: "large", input: bytes.Repeat([]byte("libstor"), 20000)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewTestEncryptor()
			var sealed bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !IsEncrypted(sealed.Bytes()) {
				t.Errorf("IsEncrypted() = false for test encryptor output")
			}

			dc, err := e.Unlock("")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var opened bytes.Buffer
			if err := dc.Decrypt(&sealed, &opened); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("Decrypt() = %d bytes, want the %d input bytes", opened.Len(), len(tt.input))
			}
		})
	}
}

func TestTestEncryptor_Passphrase(t *testing.T) {
	e := NewTestEncryptor()
	if _, err := e.Unlock("anything"); err != nil {
		t.Errorf("Unlock() before Setup error = %v", err)
	}
	if err := e.Setup("secret"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong"); err == nil || !strings.Contains(err.Error(), "wrong passphrase") {
		t.Errorf("Unlock(wrong) error = %v, want wrong passphrase", err)
	}
	if _, err := e.Unlock("secret"); err != nil {
		t.Errorf("Unlock(secret) error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false")
	}
}

func TestTestDecryptionContext_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "plain zip", input: "PK\x03\x04rest of archive"},
		{name: "truncated header", input: "LS"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if IsEncrypted([]byte(tt.input)) {
				t.Errorf("IsEncrypted(%q) = true", tt.input)
			}
			var out bytes.Buffer
			if err := (&TestDecryptionContext{}).Decrypt(strings.NewReader(tt.input), &out); err == nil {
				t.Errorf("Decrypt(%q) succeeded, want error", tt.input)
			}
		})
	}
}
