// Package ingest turns source documents into an ordered stream of text
// units for the annotation stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// unitBuffer bounds the converter's output channel so ingestion cannot run
// arbitrarily far ahead of the stages consuming it.
const unitBuffer = 64

// TextUnit is the atomic unit of work flowing through the stages.
type TextUnit struct {
	ID            string `json:"id"`
	SourceDoc     string `json:"source_doc"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
}

// Document describes one ingested source document.
type Document struct {
	Path      string `json:"path"`
	Slug      string `json:"slug"`
	Units     int    `json:"units"`
	PageCount int    `json:"page_count,omitempty"` // from a sibling PDF, when one exists
}

// Converter produces the ordered unit stream for a corpus. Documents are
// known up front; units arrive lazily on the channel, which closes when the
// corpus is exhausted or the context is cancelled.
type Converter interface {
	Convert(ctx context.Context) (<-chan TextUnit, []Document, error)
}

// MarkdownDirConverter streams chunked units from every .md and .txt file
// in a directory, in lexical filename order. When a document has a sibling
// PDF with the same base name, its page count is recorded for run metadata.
type MarkdownDirConverter struct {
	Dir     string
	Chunker Chunker
	Logger  *slog.Logger
}

// Convert scans the directory and starts the streaming goroutine.
func (c *MarkdownDirConverter) Convert(ctx context.Context) (<-chan TextUnit, []Document, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read input directory %s: %w", c.Dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md", ".txt":
			paths = append(paths, filepath.Join(c.Dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no .md or .txt documents in %s", c.Dir)
	}

	type docChunks struct {
		doc    Document
		chunks []string
	}

	prepared := make([]docChunks, 0, len(paths))
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read document %s: %w", path, err)
		}

		chunks := c.Chunker.Chunk(string(data))
		doc := Document{
			Path:  path,
			Slug:  Slug(path),
			Units: len(chunks),
		}
		if pages, err := siblingPDFPageCount(path); err == nil {
			doc.PageCount = pages
		}

		prepared = append(prepared, docChunks{doc: doc, chunks: chunks})
		docs = append(docs, doc)
		log.Debug("prepared document", "path", path, "units", len(chunks), "pages", doc.PageCount)
	}

	out := make(chan TextUnit, unitBuffer)
	go func() {
		defer close(out)
		seq := 0
		for _, dc := range prepared {
			for i, chunk := range dc.chunks {
				unit := TextUnit{
					ID:            fmt.Sprintf("%s-%04d", dc.doc.Slug, i),
					SourceDoc:     dc.doc.Path,
					SequenceIndex: seq,
					Text:          chunk,
				}
				seq++
				select {
				case out <- unit:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, docs, nil
}

// Slug derives a stable document identifier from a file path.
func Slug(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)

	var b strings.Builder
	lastDash := true
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// siblingPDFPageCount returns the page count of a PDF sharing the
// document's base name, or an error when none exists.
func siblingPDFPageCount(docPath string) (int, error) {
	pdfPath := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		return 0, err
	}
	return api.PageCountFile(pdfPath)
}
