// Package ingest imports markdown knowledge documents into the
// knowledge base. Files are split into heading-scoped chunks so the
// search_knowledge tool can return a focused section instead of a
// whole document.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/Dizzy12138/bio-agent/internal/kb"
)

// Chunk is one heading-scoped unit of a document.
type Chunk struct {
	Section string
	Content string
}

// Importer parses markdown files and stores their chunks.
type Importer struct {
	store  *kb.Store
	logger *slog.Logger
}

// NewImporter creates a markdown importer.
func NewImporter(store *kb.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// ImportFile ingests one markdown file. Existing chunks from the same
// file are replaced, so re-importing is idempotent. Returns the number
// of chunks stored.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	source := filepath.Base(path)
	chunks := Split(data)
	docs := make([]kb.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, kb.Document{
			Source:  source,
			Section: c.Section,
			Content: c.Content,
		})
	}
	if err := im.store.ReplaceDocuments(ctx, source, docs); err != nil {
		return 0, err
	}

	im.logger.Info("document ingested", "source", source, "chunks", len(docs))
	return len(docs), nil
}

// Split parses markdown and groups its blocks under the nearest
// preceding heading. Content before the first heading lands in an
// "Overview" chunk. Blocks with no text (thematic breaks, empty
// sections) produce no chunk.
func Split(source []byte) []Chunk {
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(source))

	var chunks []Chunk
	section := "Overview"
	var content strings.Builder

	flush := func() {
		text := strings.TrimSpace(content.String())
		if text != "" {
			chunks = append(chunks, Chunk{Section: section, Content: text})
		}
		content.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			if title := nodeText(h, source); title != "" {
				section = title
			}
			continue
		}
		if text := blockText(n, source); text != "" {
			content.WriteString(text)
			content.WriteString("\n\n")
		}
	}
	flush()

	return chunks
}

// blockText collects the raw source lines of a block node and its
// descendants (lists nest their text in child blocks).
func blockText(n ast.Node, source []byte) string {
	var b strings.Builder
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			if text := blockText(c, source); text != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(text)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// nodeText collects the literal text of an inline subtree (used for
// heading titles).
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
