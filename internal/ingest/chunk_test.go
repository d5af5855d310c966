package ingest

import (
	"strings"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in   string
		want Strategy
		ok   bool
	}{
		{"none", StrategyNone, true},
		{"", StrategyNone, true},
		{"fixed", StrategyFixed, true},
		{" Sentence ", StrategySentence, true},
		{"PARAGRAPH", StrategyParagraph, true},
		{"words", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStrategy(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestChunkNone(t *testing.T) {
	c := Chunker{Strategy: StrategyNone}
	if got := c.Chunk("  one document  "); len(got) != 1 || got[0] != "one document" {
		t.Errorf("unexpected chunks: %v", got)
	}
	if got := c.Chunk("   "); got != nil {
		t.Errorf("blank input should yield no units, got %v", got)
	}
}

func TestChunkFixed(t *testing.T) {
	text := "a b c d e f g h i j"

	t.Run("no overlap", func(t *testing.T) {
		c := Chunker{Strategy: StrategyFixed, Size: 4}
		got := c.Chunk(text)
		want := []string{"a b c d", "e f g h", "i j"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %d: got %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("with overlap", func(t *testing.T) {
		c := Chunker{Strategy: StrategyFixed, Size: 4, Overlap: 2}
		got := c.Chunk(text)
		if got[0] != "a b c d" || got[1] != "c d e f" {
			t.Errorf("overlap not applied: %v", got)
		}
		last := got[len(got)-1]
		if !strings.HasSuffix(last, "j") {
			t.Errorf("last chunk must reach the end: %q", last)
		}
	})

	t.Run("overlap larger than size is ignored", func(t *testing.T) {
		c := Chunker{Strategy: StrategyFixed, Size: 3, Overlap: 5}
		got := c.Chunk(text)
		if got[0] != "a b c" || got[1] != "d e f" {
			t.Errorf("invalid overlap must fall back to no overlap: %v", got)
		}
	})

	t.Run("size larger than input", func(t *testing.T) {
		c := Chunker{Strategy: StrategyFixed, Size: 100}
		got := c.Chunk(text)
		if len(got) != 1 || got[0] != text {
			t.Errorf("expected one chunk, got %v", got)
		}
	})
}

func TestChunkSentence(t *testing.T) {
	text := "First sentence. Second sentence! Third sentence? Fourth sentence."

	c := Chunker{Strategy: StrategySentence, Size: 2}
	got := c.Chunk(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "First sentence.") || !strings.Contains(got[0], "Second sentence!") {
		t.Errorf("first chunk should hold two sentences: %q", got[0])
	}
	if !strings.Contains(got[1], "Third sentence?") {
		t.Errorf("second chunk wrong: %q", got[1])
	}
}

func TestChunkParagraph(t *testing.T) {
	text := "First paragraph\nstill first.\n\nSecond paragraph.\n\n\n\nThird."
	c := Chunker{Strategy: StrategyParagraph}
	got := c.Chunk(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "First paragraph") || got[1] != "Second paragraph." || got[2] != "Third." {
		t.Errorf("unexpected paragraphs: %v", got)
	}
}
