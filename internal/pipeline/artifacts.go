package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/siftdocs/sift/internal/ingest"
	"github.com/siftdocs/sift/internal/metadata"
	"github.com/siftdocs/sift/internal/stage"
)

// classifiedRecord is one entry of the classification artifacts.
type classifiedRecord struct {
	ID            string `json:"id"`
	SourceDoc     string `json:"source_doc"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
	Label         string `json:"label"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// structuredRecord is one entry of the extraction artifact. Record is null
// when extraction failed for the unit.
type structuredRecord struct {
	ID            string         `json:"id"`
	SourceDoc     string         `json:"source_doc"`
	SequenceIndex int            `json:"sequence_index"`
	Text          string         `json:"text"`
	Record        map[string]any `json:"record"`
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// writeArtifacts turns stage results into the run's JSON artifacts and
// accumulates counts and provider usage into the recorder.
func (p *Pipeline) writeArtifacts(runID string, rec *metadata.Recorder, docs []ingest.Document, label string, classifyResults, extractResults []stage.Result) (*Summary, error) {
	summary := &Summary{
		RunID:                  runID,
		Documents:              len(docs),
		Units:                  len(classifyResults),
		ClassifiedFullPath:     p.dir.ClassifiedFullPath(),
		ClassifiedRelevantPath: p.dir.ClassifiedRelevantPath(),
		StructuredPath:         p.dir.StructuredPath(),
		RunMetadataPath:        p.dir.RunMetadataPath(),
	}

	full := make([]classifiedRecord, 0, len(classifyResults))
	relevant := make([]classifiedRecord, 0, len(classifyResults))
	classifyCounts := metadata.Counts{Total: len(classifyResults)}

	for i := range classifyResults {
		res := &classifyResults[i]
		p.recordUsage(rec, res)

		entry := classifiedRecord{
			ID:            res.Unit.ID,
			SourceDoc:     res.Unit.SourceDoc,
			SequenceIndex: res.Unit.SequenceIndex,
			Text:          res.Unit.Text,
			Status:        string(res.Status),
			Error:         res.Error,
		}
		switch res.Status {
		case stage.StatusSuccess:
			classifyCounts.Success++
			entry.Label = res.StringField(label)
		case stage.StatusParseError:
			classifyCounts.ParseError++
			entry.Label = IrrelevantLabel
		case stage.StatusProviderError:
			classifyCounts.ProviderError++
			entry.Label = IrrelevantLabel
		default:
			classifyCounts.Skipped++
			entry.Label = IrrelevantLabel
		}

		if entry.Label == RelevantLabel {
			classifyCounts.Relevant++
			relevant = append(relevant, entry)
		} else {
			classifyCounts.Irrelevant++
		}
		full = append(full, entry)
	}
	rec.SetClassified(classifyCounts)
	summary.Relevant = classifyCounts.Relevant
	summary.Irrelevant = classifyCounts.Irrelevant

	structured := make([]structuredRecord, 0, len(extractResults))
	extractCounts := metadata.Counts{Total: len(extractResults)}
	for i := range extractResults {
		res := &extractResults[i]
		p.recordUsage(rec, res)

		entry := structuredRecord{
			ID:            res.Unit.ID,
			SourceDoc:     res.Unit.SourceDoc,
			SequenceIndex: res.Unit.SequenceIndex,
			Text:          res.Unit.Text,
			Status:        string(res.Status),
			Error:         res.Error,
		}
		switch res.Status {
		case stage.StatusSuccess:
			extractCounts.Success++
			entry.Record = res.Record
		case stage.StatusParseError:
			extractCounts.ParseError++
		case stage.StatusProviderError:
			extractCounts.ProviderError++
		default:
			extractCounts.Skipped++
		}
		structured = append(structured, entry)
	}
	rec.SetExtracted(extractCounts)
	summary.Extracted = extractCounts.Success
	summary.Failed = classifyCounts.ParseError + classifyCounts.ProviderError +
		extractCounts.ParseError + extractCounts.ProviderError

	if err := writeJSON(p.dir.ClassifiedFullPath(), full); err != nil {
		return nil, err
	}
	if err := writeJSON(p.dir.ClassifiedRelevantPath(), relevant); err != nil {
		return nil, err
	}
	if err := writeJSON(p.dir.StructuredPath(), structured); err != nil {
		return nil, err
	}

	return summary, nil
}

// recordUsage folds one result's provider usage into the recorder.
func (p *Pipeline) recordUsage(rec *metadata.Recorder, res *stage.Result) {
	if res.Attempts == 0 {
		return
	}
	rec.AddUsage(string(res.Stage), p.cfg.Provider, res.Model,
		res.PromptTokens, res.CompletionTokens, res.Latency)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
