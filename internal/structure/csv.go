// Package structure stores snapshots of an identity store as directories of
// page files that can be carried to another location.
package structure

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"libstor/internal/libstor"
)

const (
	tagsFile     = "tags.csv"
	fileTagsFile = "tags-files.csv"
)

var pageName = regexp.MustCompile(`^(\d+)\.csv$`)

// CSVWriter writes a snapshot as numbered pages <n>.csv of
// hash,id,directory,filename rows plus tags.csv and tags-files.csv.
type CSVWriter struct {
	dir  string
	file *os.File
	w    *csv.Writer
	page int
}

// NewCSVWriter prepares dir for a new snapshot. Page files left by an
// earlier export are removed so a smaller snapshot does not inherit them.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create structure directory: %w", err)
	}
	pages, err := listPages(dir)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if err := os.Remove(p.path); err != nil {
			return nil, fmt.Errorf("removing stale page %s: %w", p.path, err)
		}
	}
	return &CSVWriter{dir: dir}, nil
}

func (c *CSVWriter) OpenPage(n int) error {
	if c.file != nil {
		return fmt.Errorf("page %d is still open", c.page)
	}
	f, err := os.Create(filepath.Join(c.dir, strconv.Itoa(n)+".csv"))
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	c.file = f
	c.w = csv.NewWriter(f)
	c.page = n
	return nil
}

func (c *CSVWriter) WriteRecord(rec *libstor.FileRecord) error {
	if c.w == nil {
		return errors.New("no page open")
	}
	return c.w.Write([]string{rec.Hash, strconv.FormatInt(rec.ID, 10), rec.Directory, rec.Filename})
}

func (c *CSVWriter) ClosePage(last bool) error {
	if c.file == nil {
		return nil
	}
	c.w.Flush()
	err := c.w.Error()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file, c.w = nil, nil
	return err
}

func (c *CSVWriter) WriteTags(tags []*libstor.Tag) error {
	return writeTable(filepath.Join(c.dir, tagsFile), len(tags), func(i int) []string {
		t := tags[i]
		parent := ""
		if t.ParentID != 0 {
			parent = strconv.FormatInt(t.ParentID, 10)
		}
		return []string{strconv.FormatInt(t.ID, 10), t.Name, parent}
	})
}

func (c *CSVWriter) WriteFileTags(fileTags []*libstor.FileTag) error {
	return writeTable(filepath.Join(c.dir, fileTagsFile), len(fileTags), func(i int) []string {
		ft := fileTags[i]
		return []string{strconv.FormatInt(ft.TagID, 10), strconv.FormatInt(ft.FileID, 10)}
	})
}

// Close closes a page left open by a failed export.
func (c *CSVWriter) Close() error {
	return c.ClosePage(true)
}

func writeTable(path string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CSVReader reads a snapshot written by CSVWriter.
type CSVReader struct {
	dir string
}

// NewCSVReader opens the snapshot in dir. The directory must hold at least
// one page.
func NewCSVReader(dir string) (*CSVReader, error) {
	pages, err := listPages(dir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no snapshot pages in %s", dir)
	}
	return &CSVReader{dir: dir}, nil
}

// ReadRecords calls fn for every row, page by page in numeric page order.
func (c *CSVReader) ReadRecords(ctx context.Context, fn func(*libstor.FileRecord) error) error {
	pages, err := listPages(c.dir)
	if err != nil {
		return err
	}
	for _, p := range pages {
		err := readTable(p.path, 4, func(line int, row []string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(row[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%s:%d: invalid id %q", filepath.Base(p.path), line, row[1])
			}
			if row[0] == "" || row[3] == "" {
				return fmt.Errorf("%s:%d: empty hash or filename", filepath.Base(p.path), line)
			}
			return fn(&libstor.FileRecord{
				ID:        id,
				Hash:      row[0],
				Directory: row[2],
				Filename:  row[3],
				State:     libstor.StateActive,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *CSVReader) ReadTags(fn func(*libstor.Tag) error) error {
	return readOptionalTable(filepath.Join(c.dir, tagsFile), 3, func(line int, row []string) error {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: invalid tag id %q", tagsFile, line, row[0])
		}
		var parent int64
		if row[2] != "" {
			if parent, err = strconv.ParseInt(row[2], 10, 64); err != nil {
				return fmt.Errorf("%s:%d: invalid parent id %q", tagsFile, line, row[2])
			}
		}
		return fn(&libstor.Tag{ID: id, Name: row[1], ParentID: parent})
	})
}

func (c *CSVReader) ReadFileTags(fn func(*libstor.FileTag) error) error {
	return readOptionalTable(filepath.Join(c.dir, fileTagsFile), 2, func(line int, row []string) error {
		tagID, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: invalid tag id %q", fileTagsFile, line, row[0])
		}
		fileID, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: invalid file id %q", fileTagsFile, line, row[1])
		}
		return fn(&libstor.FileTag{TagID: tagID, FileID: fileID})
	})
}

func readOptionalTable(path string, fields int, fn func(line int, row []string) error) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return readTable(path, fields, fn)
}

func readTable(path string, fields int, fn func(line int, row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

type page struct {
	n    int
	path string
}

// listPages returns the page files in dir in numeric order.
func listPages(dir string) ([]page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure directory: %w", err)
	}
	var pages []page
	for _, e := range entries {
		m := pageName.FindStringSubmatch(e.Name())
		if m == nil || !e.Type().IsRegular() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	return pages, nil
}

var (
	_ libstor.StructureWriter = (*CSVWriter)(nil)
	_ libstor.StructureReader = (*CSVReader)(nil)
)
