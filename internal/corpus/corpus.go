package corpus

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//go:embed docs/*.md
var defaultDocs embed.FS

var ErrCorpusUnreadable = errors.New("corpus unreadable")

// Metadata keys recognised in the header paragraph of a document.
var metadataKeys = map[string]string{
	"model":    "model",
	"issue":    "issue",
	"category": "category",
}

// Document is one immutable source document of the knowledge base.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Default returns the troubleshooting guides compiled into the binary.
func Default() ([]Document, error) {
	sub, err := fs.Sub(defaultDocs, "docs")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnreadable, err)
	}
	return Load(sub)
}

// LoadDir reads every markdown file directly under dir.
func LoadDir(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrCorpusUnreadable, dir)
	}
	return Load(os.DirFS(dir))
}

// Load parses the *.md files at the root of fsys, ordered by file name.
// An empty corpus is an error: there is nothing to index.
func Load(fsys fs.FS) ([]Document, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnreadable, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no markdown documents found", ErrCorpusUnreadable)
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrCorpusUnreadable, name, err)
		}
		docs = append(docs, Parse(name, src))
	}
	return docs, nil
}

// Parse builds a Document from markdown source. The first heading becomes the
// title and "Key: value" lines of the first paragraph become metadata.
func Parse(filename string, src []byte) Document {
	doc := Document{
		ID:   strings.TrimSuffix(path.Base(filename), path.Ext(filename)),
		Text: strings.TrimSpace(string(src)),
		Metadata: map[string]string{
			"source": path.Base(filename),
		},
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))

	seenParagraph := false
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if _, ok := doc.Metadata["title"]; !ok {
				doc.Metadata["title"] = headingText(node, src)
			}
		case *ast.Paragraph:
			if seenParagraph {
				continue
			}
			seenParagraph = true
			for key, value := range headerFields(node, src) {
				doc.Metadata[key] = value
			}
		}
	}

	if _, ok := doc.Metadata["title"]; !ok {
		doc.Metadata["title"] = doc.ID
	}
	return doc
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimSpace(b.String())
}

func headerFields(p *ast.Paragraph, src []byte) map[string]string {
	fields := make(map[string]string)
	lines := p.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimSpace(string(seg.Value(src)))
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if name, known := metadataKeys[strings.ToLower(strings.TrimSpace(key))]; known {
			fields[name] = strings.TrimSpace(value)
		}
	}
	return fields
}
