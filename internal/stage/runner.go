package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/siftdocs/sift/internal/debugio"
	"github.com/siftdocs/sift/internal/ingest"
	"github.com/siftdocs/sift/internal/parser"
	"github.com/siftdocs/sift/internal/prompt"
	"github.com/siftdocs/sift/internal/providers"
)

const (
	defaultWorkers    = 4
	defaultMaxRetries = 3
	retryBaseDelay    = 1 * time.Second
	retryMaxDelay     = 30 * time.Second
	retryMaxJitter    = 500 * time.Millisecond
)

// RunnerConfig configures a stage runner.
type RunnerConfig struct {
	Stage   Stage
	Builder *prompt.Builder
	Parser  *parser.Parser
	Client  providers.Client

	// Limiter is shared across stages hitting the same provider. When
	// nil, one is created from the client's advertised rate.
	Limiter *providers.RateLimiter

	Parameters providers.Parameters

	Workers    int // worker goroutines, default 4
	MaxRetries int // provider retries per invocation, default 3

	Recorder *debugio.Recorder // optional debug artifacts
	Logger   *slog.Logger
}

// Runner executes one stage over a unit stream.
type Runner struct {
	stage      Stage
	builder    *prompt.Builder
	parser     *parser.Parser
	client     providers.Client
	limiter    *providers.RateLimiter
	params     providers.Parameters
	workers    int
	maxRetries int
	recorder   *debugio.Recorder
	logger     *slog.Logger
}

// NewRunner validates the configuration and creates a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Builder == nil || cfg.Parser == nil || cfg.Client == nil {
		return nil, fmt.Errorf("stage %s: builder, parser and client are required", cfg.Stage)
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", cfg.Stage, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Limiter == nil {
		cfg.Limiter = providers.NewRateLimiter(cfg.Client.RequestsPerSecond())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		stage:      cfg.Stage,
		builder:    cfg.Builder,
		parser:     cfg.Parser,
		client:     cfg.Client,
		limiter:    cfg.Limiter,
		params:     cfg.Parameters,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}, nil
}

// Run drains the unit stream through the worker pool and returns results
// sorted by sequence index. When next is non-nil, the unit of every result
// satisfying forward is pushed downstream as it completes; next is closed
// before Run returns. Run only fails on context cancellation: per-unit
// failures are recorded in their results.
func (r *Runner) Run(ctx context.Context, units <-chan ingest.TextUnit, next chan<- ingest.TextUnit, forward func(*Result) bool) ([]Result, error) {
	if next != nil {
		defer close(next)
	}

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range units {
				res := r.process(ctx, unit)

				mu.Lock()
				results = append(results, res)
				mu.Unlock()

				if next != nil && forward != nil && forward(&res) {
					select {
					case next <- unit:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Unit.SequenceIndex < results[j].Unit.SequenceIndex
	})

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// process runs one unit through prompt, provider and parser.
func (r *Runner) process(ctx context.Context, unit ingest.TextUnit) Result {
	res := Result{Unit: unit, Stage: r.stage}

	if ctx.Err() != nil {
		res.Status = StatusSkipped
		res.Error = ctx.Err().Error()
		return res
	}

	p := r.builder.Build(unit.Text)
	r.recorder.RecordPrompt(string(r.stage), unit.ID, p.Flat())

	reply, err := r.invoke(ctx, unit.ID, p, &res)
	if err != nil {
		return r.fail(&res, err)
	}
	r.recorder.RecordReply(string(r.stage), unit.ID, res.Attempts, reply.Text)

	record, perr := r.parser.Parse(reply.Text)
	if perr == nil {
		res.Status = StatusSuccess
		res.Record = record
		return res
	}

	// One corrective re-invocation for unparseable output.
	r.logger.Debug("corrective retry",
		"stage", r.stage, "unit", unit.ID, "error", perr)
	res.Corrective = true

	reply, err = r.invoke(ctx, unit.ID, r.builder.BuildCorrective(unit.Text), &res)
	if err != nil {
		return r.fail(&res, err)
	}
	r.recorder.RecordReply(string(r.stage), unit.ID, res.Attempts, reply.Text)

	record, perr = r.parser.Parse(reply.Text)
	if perr != nil {
		res.Status = StatusParseError
		res.Error = perr.Error()
		r.logger.Warn("unit failed to parse",
			"stage", r.stage, "unit", unit.ID, "error", perr)
		return res
	}

	res.Status = StatusSuccess
	res.Record = record
	return res
}

// invoke calls the provider under the shared rate limiter, retrying
// transient failures with exponential backoff.
func (r *Runner) invoke(ctx context.Context, unitID string, p prompt.Prompt, res *Result) (*providers.Reply, error) {
	req := &providers.Request{
		RequestID:  uuid.New().String(),
		System:     p.System,
		User:       p.User,
		Parameters: r.params,
	}

	var reply *providers.Reply
	err := retry.Do(
		func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			res.Attempts++

			var err error
			reply, err = r.client.Invoke(ctx, req)
			if err != nil {
				var rateErr *providers.RateLimitError
				if errors.As(err, &rateErr) {
					r.limiter.Record429(rateErr.RetryAfter)
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.maxRetries)+1),
		retry.Delay(retryBaseDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(providers.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("retrying provider call",
				"stage", r.stage, "unit", unitID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	res.Model = reply.ModelUsed
	res.PromptTokens += reply.PromptTokens
	res.CompletionTokens += reply.CompletionTokens
	res.Latency += reply.Latency
	return reply, nil
}

func (r *Runner) fail(res *Result, err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Status = StatusSkipped
	} else {
		res.Status = StatusProviderError
	}
	res.Error = err.Error()
	r.logger.Warn("unit failed",
		"stage", r.stage, "unit", res.Unit.ID, "status", res.Status, "error", err)
	return *res
}
