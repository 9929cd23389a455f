package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"libstor/internal/app"
	"libstor/internal/libstor"

	"github.com/spf13/cobra"
)

// newSinks prints duplicates, per-file errors and conflicts to stderr as
// they happen. Progress is only shown with --verbose.
func newSinks(cmd *cobra.Command) app.Sinks {
	verbose, _ := cmd.Flags().GetBool("verbose")
	s := app.Sinks{
		Duplicates: libstor.DuplicateFunc(func(d *libstor.Duplicate) {
			fmt.Fprintf(os.Stderr, "duplicate: %s is the same as %s\n", d.InsertedPath, d.ExistingPath)
		}),
		Errors: libstor.FileErrorFunc(func(err *libstor.FileError) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}),
		Conflicts: libstor.ConflictFunc(func(err *libstor.ConflictError) {
			fmt.Fprintf(os.Stderr, "conflict: %v\n", err)
		}),
	}
	if verbose {
		s.Progress = libstor.ProgressFunc(func(current, total, page int) {
			fmt.Fprintf(os.Stderr, "\r%d/%d", current, total)
			if current == total {
				fmt.Fprintln(os.Stderr)
			}
		})
	}
	return s
}

func printEntries(entries []*libstor.DiffEntry) {
	for _, e := range entries {
		switch {
		case e.Status == libstor.StatusNew:
			fmt.Printf("%-18s %s\n", e.Status, e.InsertedPath)
		case e.Status == libstor.StatusDeleted:
			fmt.Printf("%-18s %s\n", e.Status, e.ExistedPath)
		default:
			fmt.Printf("%-18s %s -> %s\n", e.Status, e.ExistedPath, e.InsertedPath)
		}
	}
}

func printScanSummary(res *libstor.ScanResult) {
	fmt.Printf("Scanned %d file(s), %d duplicate(s), %d error(s), %d entr(ies)\n",
		res.Scanned, len(res.Duplicates), len(res.Errors), len(res.Entries))
}

// readPassphrase asks for the private key passphrase on the terminal.
func readPassphrase() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("a passphrase is required and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// readNewPassphrase asks for a new passphrase twice.
func readNewPassphrase() (string, error) {
	pw, err := readPassphrase()
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat: ")
	again, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(again) != pw {
		return "", errors.New("passphrases do not match")
	}
	return pw, nil
}
