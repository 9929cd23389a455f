package testutil

import (
	"strings"

	"libstor/internal/fs"
)

// Hash returns the content fingerprint of data as the scanner computes it.
func Hash(data string) string {
	sum, err := fs.HashReader(strings.NewReader(data))
	if err != nil {
		panic(err)
	}
	return sum
}
