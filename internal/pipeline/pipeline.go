// Package pipeline orchestrates a full annotation run: ingest documents,
// classify every unit, extract structured records from relevant units, and
// write the run's artifacts.
//
// Classification and extraction overlap: as soon as a unit is labeled
// relevant it is handed to the extraction workers, so the two stages drain
// the corpus as one streaming pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/siftdocs/sift/internal/config"
	"github.com/siftdocs/sift/internal/debugio"
	"github.com/siftdocs/sift/internal/ingest"
	"github.com/siftdocs/sift/internal/metadata"
	"github.com/siftdocs/sift/internal/parser"
	"github.com/siftdocs/sift/internal/prompt"
	"github.com/siftdocs/sift/internal/providers"
	"github.com/siftdocs/sift/internal/schema"
	"github.com/siftdocs/sift/internal/stage"
	"github.com/siftdocs/sift/internal/workdir"
)

const (
	// RelevantLabel is the classification value that forwards a unit to
	// extraction.
	RelevantLabel = "relevant"
	// IrrelevantLabel is recorded for units the classifier rejects, and
	// forced onto units whose classification failed outright.
	IrrelevantLabel = "irrelevant"

	// relevantBuffer bounds the classify-to-extract handoff channel.
	relevantBuffer = 64
)

// Pipeline runs the two-stage annotation flow.
type Pipeline struct {
	cfg      *config.Config
	dir      *workdir.Dir
	registry *providers.Registry
	logger   *slog.Logger

	// Converter overrides the default markdown directory converter.
	// Used by tests.
	Converter ingest.Converter
}

// Summary is what a completed run reports back to the CLI.
type Summary struct {
	RunID string

	Documents  int
	Units      int
	Relevant   int
	Irrelevant int
	Extracted  int
	Failed     int

	ClassifiedFullPath     string
	ClassifiedRelevantPath string
	StructuredPath         string
	RunMetadataPath        string
}

// New creates a pipeline over a validated configuration.
func New(cfg *config.Config, dir *workdir.Dir, registry *providers.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, dir: dir, registry: registry, logger: logger}
}

// Run executes the full pipeline. It fails fast on configuration and
// authentication problems; per-unit provider and parse failures are
// recorded in the artifacts and do not abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.New().String()
	log := p.logger.With("run_id", runID)
	rec := metadata.NewRecorder(runID)
	rec.SetSeed(p.cfg.Seed)
	rec.SetConfig(p.cfg.Snapshot())

	if err := p.dir.EnsureExists(); err != nil {
		return nil, err
	}

	classifyRunner, extractRunner, label, err := p.buildRunners(ctx, log)
	if err != nil {
		return nil, err
	}

	converter := p.Converter
	if converter == nil {
		strategy, _ := ingest.ParseStrategy(p.cfg.Chunk.Strategy)
		converter = &ingest.MarkdownDirConverter{
			Dir: p.cfg.InputDir,
			Chunker: ingest.Chunker{
				Strategy: strategy,
				Size:     p.cfg.Chunk.Size,
				Overlap:  p.cfg.Chunk.Overlap,
			},
			Logger: log,
		}
	}

	rec.Start("ingest")
	units, docs, err := converter.Convert(ctx)
	rec.Stop("ingest")
	if err != nil {
		return nil, err
	}
	rec.SetDocuments(docs)

	totalUnits := 0
	for _, d := range docs {
		totalUnits += d.Units
	}
	if totalUnits == 0 {
		return nil, fmt.Errorf("corpus produced no text units; check input_dir and chunking settings")
	}
	log.Info("starting run",
		"documents", len(docs),
		"units", totalUnits,
		"provider", p.cfg.Provider)

	rec.Start("annotate")
	relevant := make(chan ingest.TextUnit, relevantBuffer)
	var classifyResults, extractResults []stage.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		classifyResults, err = classifyRunner.Run(gctx, units, relevant, func(res *stage.Result) bool {
			return res.OK() && res.StringField(label) == RelevantLabel
		})
		return err
	})
	g.Go(func() error {
		var err error
		extractResults, err = extractRunner.Run(gctx, relevant, nil, nil)
		return err
	})
	err = g.Wait()
	rec.Stop("annotate")
	if err != nil {
		return nil, err
	}

	rec.Start("artifacts")
	summary, aerr := p.writeArtifacts(runID, rec, docs, label, classifyResults, extractResults)
	rec.Stop("artifacts")
	if aerr != nil {
		return nil, aerr
	}

	if err := rec.WriteRun(p.dir.RunMetadataPath()); err != nil {
		return nil, err
	}
	if err := rec.WriteUsage(p.dir.LLMMetadataPath()); err != nil {
		return nil, err
	}

	log.Info("run complete",
		"units", summary.Units,
		"relevant", summary.Relevant,
		"extracted", summary.Extracted,
		"failed", summary.Failed)
	return summary, nil
}

// buildRunners loads schemas, builds prompt builders and parsers, and
// verifies provider credentials. Every error here is fatal. The returned
// label is the classification schema's enumerated label field.
func (p *Pipeline) buildRunners(ctx context.Context, log *slog.Logger) (*stage.Runner, *stage.Runner, string, error) {
	classifyDef, err := schema.Load(p.cfg.ClassificationSchema)
	if err != nil {
		return nil, nil, "", err
	}
	extractDef, err := schema.Load(p.cfg.ExtractionSchema)
	if err != nil {
		return nil, nil, "", err
	}
	label := findLabelField(classifyDef)
	if label == "" {
		return nil, nil, "", &schema.ConfigurationError{
			Path:    classifyDef.Path,
			Message: "classification schema must declare an enumerated label field",
		}
	}

	classifyMode, err := prompt.ParseMode(p.cfg.ClassificationPromptMode)
	if err != nil {
		return nil, nil, "", err
	}
	extractMode, err := prompt.ParseMode(p.cfg.ExtractionPromptMode)
	if err != nil {
		return nil, nil, "", err
	}

	classifyBuilder, err := prompt.NewBuilder(classifyDef, classifyMode)
	if err != nil {
		return nil, nil, "", err
	}
	extractBuilder, err := prompt.NewBuilder(extractDef, extractMode)
	if err != nil {
		return nil, nil, "", err
	}

	classifyParser, err := parser.New(classifyDef)
	if err != nil {
		return nil, nil, "", err
	}
	extractParser, err := parser.New(extractDef)
	if err != nil {
		return nil, nil, "", err
	}

	client, err := p.registry.Get(p.cfg.Provider)
	if err != nil {
		return nil, nil, "", err
	}
	if hc, ok := client.(providers.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			var authErr *providers.AuthenticationError
			if errors.As(err, &authErr) {
				return nil, nil, "", err
			}
			// Transient health problems are logged but do not block the
			// run; the per-unit retry budget covers them.
			log.Warn("provider health check failed", "provider", client.Name(), "error", err)
		}
	}

	params := p.cfg.Generation
	if params.Seed == 0 && p.cfg.Seed != 0 {
		params.Seed = p.cfg.Seed
	}

	var recorder *debugio.Recorder
	if p.cfg.DebugIO {
		recorder = debugio.New(p.dir.DebugDir(), log)
	}

	limiter := providers.NewRateLimiter(client.RequestsPerSecond())

	classifyRunner, err := stage.NewRunner(stage.RunnerConfig{
		Stage:      stage.StageClassify,
		Builder:    classifyBuilder,
		Parser:     classifyParser,
		Client:     client,
		Limiter:    limiter,
		Parameters: params,
		Workers:    p.cfg.Workers,
		MaxRetries: p.cfg.MaxRetries,
		Recorder:   recorder,
		Logger:     log,
	})
	if err != nil {
		return nil, nil, "", err
	}

	extractRunner, err := stage.NewRunner(stage.RunnerConfig{
		Stage:      stage.StageExtract,
		Builder:    extractBuilder,
		Parser:     extractParser,
		Client:     client,
		Limiter:    limiter,
		Parameters: params,
		Workers:    p.cfg.Workers,
		MaxRetries: p.cfg.MaxRetries,
		Recorder:   recorder,
		Logger:     log,
	})
	if err != nil {
		return nil, nil, "", err
	}

	return classifyRunner, extractRunner, label, nil
}

// findLabelField returns the name of the first enumerated field of the
// classification schema, which carries the relevance label.
func findLabelField(def *schema.Definition) string {
	for _, f := range def.Fields {
		if f.Kind == schema.KindEnum {
			return f.Name
		}
	}
	return ""
}
