package ingest

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// Strategy selects how a document is split into text units.
type Strategy string

const (
	// StrategyNone emits the whole document as one unit.
	StrategyNone Strategy = "none"
	// StrategyFixed emits windows of Size words advancing by Size-Overlap.
	StrategyFixed Strategy = "fixed"
	// StrategySentence groups Size sentences per unit with Overlap
	// sentences shared between neighbours.
	StrategySentence Strategy = "sentence"
	// StrategyParagraph splits on blank lines, one paragraph per unit.
	StrategyParagraph Strategy = "paragraph"
)

// ParseStrategy validates a chunk strategy string from configuration.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(strings.TrimSpace(strings.ToLower(s))) {
	case StrategyNone, "":
		return StrategyNone, true
	case StrategyFixed:
		return StrategyFixed, true
	case StrategySentence:
		return StrategySentence, true
	case StrategyParagraph:
		return StrategyParagraph, true
	default:
		return "", false
	}
}

// Chunker splits document text according to a strategy. Size and Overlap
// are counted in words (fixed) or sentences (sentence); paragraph and none
// ignore them.
type Chunker struct {
	Strategy Strategy
	Size     int
	Overlap  int
}

// Chunk splits text into units. Empty or whitespace-only chunks are
// dropped, so a blank document yields no units.
func (c Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	switch c.Strategy {
	case StrategyFixed:
		return windows(strings.Fields(text), c.Size, c.Overlap, " ")
	case StrategySentence:
		return windows(splitSentences(text), c.Size, c.Overlap, " ")
	case StrategyParagraph:
		return splitParagraphs(text)
	default:
		return []string{text}
	}
}

// windows groups elements into overlapping windows of size elements,
// advancing by size-overlap each step.
func windows(elems []string, size, overlap int, sep string) []string {
	if len(elems) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(elems)
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	var out []string
	for start := 0; start < len(elems); start += step {
		end := start + size
		if end > len(elems) {
			end = len(elems)
		}
		chunk := strings.TrimSpace(strings.Join(elems[start:end], sep))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(elems) {
			break
		}
	}
	return out
}

// splitSentences segments text into sentences per UAX #29.
func splitSentences(text string) []string {
	var out []string
	tokens := sentences.FromString(text)
	for tokens.Next() {
		s := strings.TrimSpace(tokens.Value())
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}
