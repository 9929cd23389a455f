package structure

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"libstor/internal/libstor"
)

var pageTemplate = template.Must(template.New("page").Parse(
	"# Library catalogue\n\nID | Hash | File\n--- | --- | ---\n",
))

var rowTemplate = template.Must(template.New("row").Parse(
	"{{.ID}} | {{.Hash}} | [{{.Name}}]({{.Link}})\n",
))

var footerTemplate = template.Must(template.New("footer").Parse(
	"\n{{if .Prev}}[<< Previous page](files_{{.Prev}}.md){{end}} | {{.Page}} | " +
		"{{if .Next}}[Next page >>](files_{{.Next}}.md){{end}}\n--- | --- | ---\n",
))

var tagsTemplate = template.Must(template.New("tags").Funcs(template.FuncMap{"cell": markdownText}).Parse(
	"# Tags\n\nID | Name | Parent\n--- | --- | ---\n" +
		"{{range .}}{{.ID}} | {{cell .Name}} | {{if .ParentID}}{{.ParentID}}{{end}}\n{{end}}",
))

var fileTagsTemplate = template.Must(template.New("filetags").Parse(
	"# Tagged files\n\nTag | File\n--- | ---\n" +
		"{{range .}}{{.TagID}} | {{.FileID}}\n{{end}}",
))

// MarkdownWriter renders a snapshot as a browsable catalogue: pages
// files_<n>.md linking every file relative to the catalogue directory, and
// tags.md. It cannot be imported back.
type MarkdownWriter struct {
	dir      string
	rootLink string
	file     *os.File
	page     int
}

// NewMarkdownWriter writes the catalogue of the library at root into dir.
func NewMarkdownWriter(dir, root string) (*MarkdownWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create structure directory: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(absDir, absRoot)
	if err != nil {
		return nil, fmt.Errorf("linking %s from %s: %w", root, dir, err)
	}
	return &MarkdownWriter{dir: dir, rootLink: filepath.ToSlash(rel)}, nil
}

func (m *MarkdownWriter) OpenPage(n int) error {
	if m.file != nil {
		return fmt.Errorf("page %d is still open", m.page)
	}
	f, err := os.Create(filepath.Join(m.dir, "files_"+strconv.Itoa(n)+".md"))
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	if err := pageTemplate.Execute(f, nil); err != nil {
		f.Close()
		return err
	}
	m.file = f
	m.page = n
	return nil
}

func (m *MarkdownWriter) WriteRecord(rec *libstor.FileRecord) error {
	if m.file == nil {
		return errors.New("no page open")
	}
	return rowTemplate.Execute(m.file, struct {
		ID   int64
		Hash string
		Name string
		Link string
	}{
		ID:   rec.ID,
		Hash: rec.Hash,
		Name: markdownText(rec.Filename),
		Link: m.link(rec.Path()),
	})
}

func (m *MarkdownWriter) ClosePage(last bool) error {
	if m.file == nil {
		return nil
	}
	footer := struct{ Prev, Page, Next int }{Page: m.page}
	if m.page > 1 {
		footer.Prev = m.page - 1
	}
	if !last {
		footer.Next = m.page + 1
	}
	err := footerTemplate.Execute(m.file, footer)
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	m.file = nil
	return err
}

func (m *MarkdownWriter) WriteTags(tags []*libstor.Tag) error {
	return renderFile(filepath.Join(m.dir, "tags.md"), tagsTemplate, tags)
}

func (m *MarkdownWriter) WriteFileTags(fileTags []*libstor.FileTag) error {
	return renderFile(filepath.Join(m.dir, "tags-files.md"), fileTagsTemplate, fileTags)
}

func (m *MarkdownWriter) Close() error {
	return m.ClosePage(true)
}

// link escapes every segment of rel and prefixes the path to the root.
func (m *MarkdownWriter) link(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	escaped := strings.Join(parts, "/")
	if m.rootLink == "." {
		return escaped
	}
	return m.rootLink + "/" + escaped
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`, "|", `\|`,
	"*", `\*`, "_", `\_`, "`", "\\`", "<", `\<`,
)

// markdownText backslash-escapes name so it renders literally inside a
// link label or a table cell.
func markdownText(name string) string {
	return markdownEscaper.Replace(name)
}

func renderFile(path string, tmpl *template.Template, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ libstor.StructureWriter = (*MarkdownWriter)(nil)
