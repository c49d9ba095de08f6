// Package pipeline orchestrates the full conversion: diarized transcript in,
// podcast script out, with optional persistence and stage metrics around
// every step.
//
// Stage order is fixed: chunk → reconcile → apply → generate. Each stage
// takes immutable input and returns a new value; a stage's output is only
// persisted after the stage fully succeeds, so a failure never corrupts
// artifacts from earlier stages. Hosted-service failures are retried with
// bounded exponential backoff; deterministic contract violations (coverage,
// validation, lookup, generation) surface immediately.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/podforge-ai/podforge/internal/observe"
	"github.com/podforge-ai/podforge/internal/reconcile"
	"github.com/podforge-ai/podforge/internal/resilience"
	"github.com/podforge-ai/podforge/internal/script"
	"github.com/podforge-ai/podforge/internal/transcript"
)

// StageError attributes a failure to the pipeline stage it occurred in. The
// message leads with the stage name so operators see "reconcile: ..." rather
// than a bare cause.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Store receives stage artifacts as they are produced. Implementations must
// tolerate being called once per episode per method. A nil Store disables
// persistence.
type Store interface {
	SaveTranscript(ctx context.Context, episodeID string, lines []transcript.Line) error
	SaveMappings(ctx context.Context, episodeID string, mappings []reconcile.SpeakerMapping) error
	SaveScript(ctx context.Context, episodeID string, lines []transcript.Line) error
}

// Result is the terminal artifact of one conversion.
type Result struct {
	// EpisodeID identifies the conversion for persistence and logs.
	EpisodeID string

	// Chunks is the number of chunks the transcript was split into.
	Chunks int

	// Mappings is the resolved speaker mapping.
	Mappings []reconcile.SpeakerMapping

	// Reconciled is the unified transcript under global speaker names.
	Reconciled []transcript.Line

	// Script is the generated podcast script.
	Script []transcript.Line

	// ScriptWords is the script's word count.
	ScriptWords int
}

// Speakers returns the script's speaker roster in first-appearance order.
// The roster is closed: the synthesis stage can enumerate it to assign one
// voice per speaker.
func (r *Result) Speakers() []string {
	return transcript.Speakers(r.Script)
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithStore persists stage artifacts to s after each stage succeeds.
func WithStore(s Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithMetrics records stage latencies to m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRetry overrides the retry policy for hosted-service calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) {
		cfg.RetryIf = isTransient
		p.retry = cfg
	}
}

// WithLogger sets the pipeline logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// Pipeline wires the conversion stages together. Construct with [New]; safe
// for concurrent use across episodes.
type Pipeline struct {
	chunker   *transcript.Chunker
	resolver  reconcile.Resolver
	generator *script.Generator

	store   Store
	metrics *observe.Metrics
	retry   resilience.RetryConfig
	log     *slog.Logger
}

// New assembles a [Pipeline] from its stage implementations.
func New(chunker *transcript.Chunker, resolver reconcile.Resolver, generator *script.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		chunker:   chunker,
		resolver:  resolver,
		generator: generator,
		retry:     resilience.RetryConfig{RetryIf: isTransient},
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// isTransient classifies an error for retry. The deterministic contract
// errors repeat identically on a re-issued call, so only everything else
// (transport, timeout, quota) is worth another attempt.
func isTransient(err error) bool {
	var (
		valErr *reconcile.ValidationError
		covErr *reconcile.CoverageError
		lkErr  *reconcile.LookupError
		genErr *script.GenerationError
	)
	switch {
	case errors.As(err, &valErr),
		errors.As(err, &covErr),
		errors.As(err, &lkErr),
		errors.As(err, &genErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Run converts lines into a podcast script per params. episodeID labels the
// conversion for persistence; pass any stable identifier.
//
// Errors are returned as *StageError naming the failing stage.
func (p *Pipeline) Run(ctx context.Context, episodeID string, lines []transcript.Line, params script.Params) (*Result, error) {
	result := &Result{EpisodeID: episodeID}

	// --- Chunk ---
	start := time.Now()
	chunks := p.chunker.Split(lines)
	p.metrics.RecordStage(ctx, observe.StageChunk, start)
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		return nil, &StageError{Stage: "chunk", Err: errors.New("empty transcript")}
	}
	p.metrics.TranscriptChunks.Record(ctx, int64(len(chunks)))
	p.log.Info("transcript chunked", "episode", episodeID, "chunks", len(chunks), "turns", len(lines))

	if p.store != nil {
		if err := p.store.SaveTranscript(ctx, episodeID, lines); err != nil {
			return nil, &StageError{Stage: "chunk", Err: fmt.Errorf("persist transcript: %w", err)}
		}
	}

	// --- Reconcile ---
	start = time.Now()
	mappings, err := resilience.RetryResult(ctx, p.retry, func(ctx context.Context) ([]reconcile.SpeakerMapping, error) {
		return p.resolver.Resolve(ctx, chunks)
	})
	p.metrics.RecordStage(ctx, observe.StageReconcile, start)
	if err != nil {
		return nil, &StageError{Stage: "reconcile", Err: err}
	}
	result.Mappings = mappings
	p.log.Info("speakers reconciled",
		"episode", episodeID,
		"speakers", len(reconcile.GlobalNames(mappings)))

	if p.store != nil {
		if err := p.store.SaveMappings(ctx, episodeID, mappings); err != nil {
			return nil, &StageError{Stage: "reconcile", Err: fmt.Errorf("persist mappings: %w", err)}
		}
	}

	// --- Apply ---
	reconciled, err := reconcile.Apply(chunks, mappings)
	if err != nil {
		return nil, &StageError{Stage: "apply", Err: err}
	}
	result.Reconciled = reconciled

	// --- Generate ---
	start = time.Now()
	scriptLines, err := resilience.RetryResult(ctx, p.retry, func(ctx context.Context) ([]transcript.Line, error) {
		return p.generator.Generate(ctx, reconciled, params)
	})
	p.metrics.RecordStage(ctx, observe.StageScript, start)
	if err != nil {
		return nil, &StageError{Stage: "generate", Err: err}
	}
	result.Script = scriptLines
	result.ScriptWords = transcript.WordCount(scriptLines)
	p.metrics.ScriptWords.Record(ctx, int64(result.ScriptWords))
	p.log.Info("script generated",
		"episode", episodeID,
		"lines", len(scriptLines),
		"words", result.ScriptWords,
		"word_target", params.WordTarget())

	if p.store != nil {
		if err := p.store.SaveScript(ctx, episodeID, scriptLines); err != nil {
			return nil, &StageError{Stage: "generate", Err: fmt.Errorf("persist script: %w", err)}
		}
	}

	return result, nil
}

// RunText is Run for a wire-format transcript string.
func (p *Pipeline) RunText(ctx context.Context, episodeID, text string, params script.Params) (*Result, error) {
	lines, err := transcript.Parse(text)
	if err != nil {
		return nil, &StageError{Stage: "parse", Err: err}
	}
	return p.Run(ctx, episodeID, lines, params)
}
