package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root ignore file. It is itself never scanned.
const IgnoreFileName = ".libstorignore"

// defaultIgnoreRules keep store files and relocation temporaries out of
// scans, so a store kept inside the library root never shows up as content.
var defaultIgnoreRules = []string{
	IgnoreFileName,
	"*.db",
	"*.db-journal",
	"*.db-wal",
	"*.db-shm",
	".libstor-*",
}

type ignoreRule struct {
	glob     string
	negate   bool // "!glob" re-includes what an earlier rule excluded
	dirOnly  bool // "glob/" only applies to directories
	anchored bool // globs containing "/" match the whole root-relative path
}

// IgnoreRules decides which root-relative paths a scan skips. Rules use
// path.Match globs and are evaluated in order; the last matching rule wins.
type IgnoreRules struct {
	rules []ignoreRule
}

// NewIgnoreRules parses rule lines. Blank lines and "#" comments are skipped,
// as are globs path.Match rejects.
func NewIgnoreRules(lines []string) *IgnoreRules {
	r := &IgnoreRules{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var rule ignoreRule
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		if _, err := path.Match(line, ""); err != nil {
			continue
		}
		rule.glob = line
		rule.anchored = strings.Contains(line, "/")
		r.rules = append(r.rules, rule)
	}
	return r
}

// LoadIgnoreRules combines the built-in rules, extra rules from the config
// and the rules in root's ignore file, in that order.
func LoadIgnoreRules(root string, extra []string) (*IgnoreRules, error) {
	lines := append([]string{}, defaultIgnoreRules...)
	lines = append(lines, extra...)

	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if errors.Is(err, os.ErrNotExist) {
		return NewIgnoreRules(lines), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()
	fromFile, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return NewIgnoreRules(append(lines, fromFile...)), nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Ignored reports whether rel, a "/" separated path relative to the root,
// is skipped.
func (r *IgnoreRules) Ignored(rel string, isDir bool) bool {
	if rel == "" {
		return false
	}
	base := path.Base(rel)
	ignored := false
	for _, rule := range r.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		subject := base
		if rule.anchored {
			subject = rel
		}
		if ok, _ := path.Match(rule.glob, subject); ok {
			ignored = !rule.negate
		}
	}
	return ignored
}
