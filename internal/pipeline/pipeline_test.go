package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/podforge-ai/podforge/internal/pipeline"
	"github.com/podforge-ai/podforge/internal/reconcile"
	"github.com/podforge-ai/podforge/internal/resilience"
	"github.com/podforge-ai/podforge/internal/script"
	"github.com/podforge-ai/podforge/internal/transcript"
	llm "github.com/podforge-ai/podforge/pkg/provider/llm"
	"github.com/podforge-ai/podforge/pkg/provider/llm/mock"
)

const sampleTranscript = `speaker_0: Welcome everyone, today we are talking about the migration plan.
speaker_1: Thanks. I think we should move the database first.
speaker_0: I disagree, the cache layer is the riskier piece.
`

const mappingJSON = `[
	{"chunk_number": 1, "original_id": "speaker_0", "global_name": "Maya"},
	{"chunk_number": 1, "original_id": "speaker_1", "global_name": "Jordan"}
]`

const scriptText = "Maya: Welcome, I'm here with Jordan to talk migration.\nJordan: Databases first, though Maya prefers the cache.\nMaya: Thanks for listening.\n"

// fakeStore records persistence calls in order.
type fakeStore struct {
	mu    sync.Mutex
	calls []string

	saveMappingsErr error
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeStore) SaveTranscript(ctx context.Context, id string, lines []transcript.Line) error {
	s.record("transcript")
	return nil
}

func (s *fakeStore) SaveMappings(ctx context.Context, id string, mappings []reconcile.SpeakerMapping) error {
	s.record("mappings")
	return s.saveMappingsErr
}

func (s *fakeStore) SaveScript(ctx context.Context, id string, lines []transcript.Line) error {
	s.record("script")
	return nil
}

func newPipeline(resolverLLM, generatorLLM *mock.Provider, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(
		transcript.NewChunker(0),
		reconcile.NewLLMResolver(resolverLLM),
		script.New(generatorLLM),
		opts...,
	)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	resolverLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: mappingJSON}}
	generatorLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: scriptText}}
	store := &fakeStore{}
	p := newPipeline(resolverLLM, generatorLLM, pipeline.WithStore(store))

	result, err := p.RunText(context.Background(), "ep-1", sampleTranscript, script.Params{TargetMinutes: 1})
	if err != nil {
		t.Fatalf("RunText returned error: %v", err)
	}

	if result.Chunks != 1 {
		t.Errorf("Chunks=%d, want 1", result.Chunks)
	}
	if len(result.Mappings) != 2 {
		t.Errorf("got %d mappings, want 2", len(result.Mappings))
	}
	if got := result.Reconciled[0].Speaker; got != "Maya" {
		t.Errorf("reconciled speaker=%q, want Maya", got)
	}
	if len(result.Script) != 3 {
		t.Errorf("got %d script lines, want 3", len(result.Script))
	}
	if got := result.Speakers(); len(got) != 2 {
		t.Errorf("Speakers()=%v, want closed roster of 2", got)
	}

	wantCalls := []string{"transcript", "mappings", "script"}
	if strings.Join(store.calls, ",") != strings.Join(wantCalls, ",") {
		t.Errorf("store calls=%v, want %v", store.calls, wantCalls)
	}
}

func TestRun_StageAttributionOnCoverageError(t *testing.T) {
	t.Parallel()

	// Mapping covers only one of the two labels.
	resolverLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[{"chunk_number": 1, "original_id": "speaker_0", "global_name": "Maya"}]`,
	}}
	p := newPipeline(resolverLLM, &mock.Provider{})

	_, err := p.RunText(context.Background(), "ep-2", sampleTranscript, script.Params{TargetMinutes: 1})

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if stageErr.Stage != "reconcile" {
		t.Errorf("Stage=%q, want reconcile", stageErr.Stage)
	}
	var cov *reconcile.CoverageError
	if !errors.As(err, &cov) {
		t.Fatalf("stage error does not wrap the coverage error: %v", err)
	}
	if !strings.Contains(err.Error(), "chunk 1 speaker_1") {
		t.Errorf("error %q does not name the unmapped pair", err)
	}
	// Deterministic failure: exactly one LLM call, no retries.
	if len(resolverLLM.CompleteCalls) != 1 {
		t.Errorf("got %d resolver calls, want 1", len(resolverLLM.CompleteCalls))
	}
}

func TestRun_RetriesTransientResolverFailure(t *testing.T) {
	t.Parallel()

	resolverLLM := &mock.Provider{
		CompleteErrs:      []error{errors.New("upstream timeout"), nil},
		CompleteResponses: []*llm.CompletionResponse{nil, {Content: mappingJSON}},
	}
	generatorLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: scriptText}}
	p := newPipeline(resolverLLM, generatorLLM, pipeline.WithRetry(resilience.RetryConfig{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
	}))

	result, err := p.RunText(context.Background(), "ep-3", sampleTranscript, script.Params{TargetMinutes: 1})
	if err != nil {
		t.Fatalf("RunText returned error: %v", err)
	}
	if len(resolverLLM.CompleteCalls) != 2 {
		t.Errorf("got %d resolver calls, want 2 (one retry)", len(resolverLLM.CompleteCalls))
	}
	if len(result.Mappings) != 2 {
		t.Errorf("got %d mappings after retry, want 2", len(result.Mappings))
	}
}

func TestRun_EmptyTranscriptFailsInChunkStage(t *testing.T) {
	t.Parallel()

	p := newPipeline(&mock.Provider{}, &mock.Provider{})

	_, err := p.Run(context.Background(), "ep-4", nil, script.Params{TargetMinutes: 1})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if stageErr.Stage != "chunk" {
		t.Errorf("Stage=%q, want chunk", stageErr.Stage)
	}
}

func TestRun_StoreFailureAbortsStage(t *testing.T) {
	t.Parallel()

	resolverLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: mappingJSON}}
	generatorLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: scriptText}}
	store := &fakeStore{saveMappingsErr: errors.New("connection refused")}
	p := newPipeline(resolverLLM, generatorLLM, pipeline.WithStore(store))

	_, err := p.RunText(context.Background(), "ep-5", sampleTranscript, script.Params{TargetMinutes: 1})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if stageErr.Stage != "reconcile" {
		t.Errorf("Stage=%q, want reconcile", stageErr.Stage)
	}
	// Script generation must not have run.
	if len(generatorLLM.CompleteCalls) != 0 {
		t.Error("generator was called after persistence failure")
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	est := pipeline.EstimateCost(pipeline.CostParams{
		AudioLength:       time.Hour,
		TargetLength:      10 * time.Minute,
		Clean:             true,
		CloneSpeakers:     2,
		CloneSampleLength: time.Minute,
	})

	approx := func(got, want float64) bool {
		diff := got - want
		return diff < 0.001 && diff > -0.001
	}
	if !approx(est.CleanUSD, 10.0) {
		t.Errorf("CleanUSD=%.4f, want 10.00", est.CleanUSD)
	}
	if !approx(est.TranscribeUSD, 0.40) {
		t.Errorf("TranscribeUSD=%.4f, want 0.40", est.TranscribeUSD)
	}
	if !approx(est.CloneUSD, 2.0/6) {
		t.Errorf("CloneUSD=%.4f, want %.4f", est.CloneUSD, 2.0/6)
	}
	if !approx(est.SynthesizeUSD, 1.70) {
		t.Errorf("SynthesizeUSD=%.4f, want 1.70", est.SynthesizeUSD)
	}
	if !approx(est.Total(), est.CleanUSD+est.TranscribeUSD+est.CloneUSD+est.SynthesizeUSD) {
		t.Error("Total does not sum components")
	}
}
