package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/data/Paper One.md", "paper-one"},
		{"paper_2.txt", "paper-2"},
		{"A--B.md", "a-b"},
		{"weird!!name.md", "weird-name"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMarkdownDirConverter(t *testing.T) {
	t.Run("streams units in order", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "b-second.md", "Paragraph one.\n\nParagraph two.")
		writeDoc(t, dir, "a-first.md", "Only paragraph.")
		writeDoc(t, dir, "notes.json", "ignored")

		conv := &MarkdownDirConverter{
			Dir:     dir,
			Chunker: Chunker{Strategy: StrategyParagraph},
		}
		units, docs, err := conv.Convert(context.Background())
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}

		if len(docs) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(docs))
		}
		if docs[0].Slug != "a-first" || docs[1].Slug != "b-second" {
			t.Errorf("documents must be in lexical order: %v", docs)
		}
		if docs[0].Units != 1 || docs[1].Units != 2 {
			t.Errorf("unexpected unit counts: %+v", docs)
		}

		var got []TextUnit
		for u := range units {
			got = append(got, u)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 units, got %d", len(got))
		}
		for i, u := range got {
			if u.SequenceIndex != i {
				t.Errorf("unit %d has sequence index %d", i, u.SequenceIndex)
			}
		}
		if got[0].ID != "a-first-0000" || got[1].ID != "b-second-0000" || got[2].ID != "b-second-0001" {
			t.Errorf("unexpected unit IDs: %v, %v, %v", got[0].ID, got[1].ID, got[2].ID)
		}
		if got[2].Text != "Paragraph two." {
			t.Errorf("unexpected text: %q", got[2].Text)
		}
	})

	t.Run("empty directory fails", func(t *testing.T) {
		conv := &MarkdownDirConverter{Dir: t.TempDir(), Chunker: Chunker{}}
		if _, _, err := conv.Convert(context.Background()); err == nil {
			t.Error("expected error for a directory without documents")
		}
	})

	t.Run("missing directory fails", func(t *testing.T) {
		conv := &MarkdownDirConverter{Dir: "/does/not/exist"}
		if _, _, err := conv.Convert(context.Background()); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("cancellation stops the stream", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "doc.md", "One.\n\nTwo.\n\nThree.")

		ctx, cancel := context.WithCancel(context.Background())
		conv := &MarkdownDirConverter{Dir: dir, Chunker: Chunker{Strategy: StrategyParagraph}}
		units, _, err := conv.Convert(ctx)
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		cancel()
		// Drain whatever was buffered; the channel must close.
		for range units {
		}
	})
}
