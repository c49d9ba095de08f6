package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/podforge-ai/podforge/internal/transcript"
	llm "github.com/podforge-ai/podforge/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
)

// systemPrompt instructs the model to reconcile speaker identities across
// chunks using textual evidence only. The response shape is the interchange
// contract validated by parseMappings.
const systemPrompt = `You are a speaker identification assistant for multi-speaker conversation transcripts.

The transcript below was split into numbered chunks. Within each chunk, speakers carry anonymous diarization labels (for example "speaker_0", "speaker_a"). The same real person may carry DIFFERENT labels in different chunks. Your task: assign every (chunk, label) pair a single global name so that each real person has exactly one name across the whole conversation.

Rules:
- Use ONLY textual evidence: names spoken in dialogue ("Thanks, Elena"), who is being addressed, topical continuity, and turn-taking patterns.
- When a speaker is explicitly named by another speaker, prefer that name as the global name over a generic placeholder.
- When no name is ever given for a person, use a stable placeholder "Speaker N", numbering by order of first appearance.
- Within a single chunk, two different labels are different people; do NOT give them the same global name unless the dialogue contains an explicit correction saying they are the same person.
- Cover EVERY label that appears in EVERY chunk. Do not invent labels that do not appear.

Respond with ONLY a JSON array in this exact format (no markdown, no prose):
[
  {"chunk_number": 1, "original_id": "speaker_0", "global_name": "Elena"}
]`

// Option is a functional option for configuring an [LLMResolver].
type Option func(*LLMResolver)

// WithTemperature sets the sampling temperature. Lower values produce more
// deterministic mappings. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(r *LLMResolver) {
		r.temperature = temp
	}
}

// WithLogger sets the logger used for best-effort heuristic warnings.
// Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *LLMResolver) {
		r.log = log
	}
}

// LLMResolver implements [Resolver] with a language-model call carrying all
// chunks in one request so the model can cross-reference names and context
// between them. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the desired model rather than overriding per-request.
type LLMResolver struct {
	llm         llm.Provider
	temperature float64
	log         *slog.Logger
}

// Ensure LLMResolver satisfies the Resolver interface at compile time.
var _ Resolver = (*LLMResolver)(nil)

// NewLLMResolver returns an [LLMResolver] backed by the given provider.
func NewLLMResolver(provider llm.Provider, opts ...Option) *LLMResolver {
	r := &LLMResolver{
		llm:         provider,
		temperature: defaultTemperature,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve sends all chunks to the model and returns the validated mapping.
//
// Failure modes:
//   - unparseable or contract-violating model output → *ValidationError
//   - mapping not covering exactly the source pairs → *CoverageError
//   - transport failure → the provider's error, wrapped
//
// A response that merges two labels within one chunk, or assigns
// near-identical names to different people, is accepted but logged as a
// warning: both checks are best-effort heuristics over non-deterministic
// model output, not guarantees.
func (r *LLMResolver) Resolve(ctx context.Context, chunks []transcript.Chunk) ([]SpeakerMapping, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  r.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: renderChunks(chunks)},
		},
	}
	r.warnIfOverContextWindow(req)

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speaker resolver: complete: %w", err)
	}

	mappings, err := parseMappings(resp.Content)
	if err != nil {
		return nil, err
	}
	if err := ValidateCoverage(chunks, mappings); err != nil {
		return nil, err
	}

	r.warnWithinChunkMerges(mappings)
	r.warnNearDuplicateNames(mappings)

	return mappings, nil
}

// warnIfOverContextWindow estimates the token footprint of req and logs when
// it exceeds the model's context window. The request is still sent: the
// estimate is approximate, and the provider returns the authoritative error.
func (r *LLMResolver) warnIfOverContextWindow(req llm.CompletionRequest) {
	window := r.llm.Capabilities().ContextWindow
	if window <= 0 {
		return
	}
	messages := append([]llm.Message{{Role: "system", Content: req.SystemPrompt}}, req.Messages...)
	tokens, err := r.llm.CountTokens(messages)
	if err != nil {
		r.log.Debug("token count unavailable", "error", err)
		return
	}
	if tokens > window {
		r.log.Warn("rendered chunks likely exceed the model context window",
			"estimated_tokens", tokens,
			"context_window", window)
	}
}

// renderChunks formats the chunks for the user message, each prefixed with
// its 1-based number so the model can reference chunks in its answer.
func renderChunks(chunks []transcript.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "CHUNK %d:\n", c.Index)
		sb.WriteString(c.Text())
	}
	return sb.String()
}

// parseMappings decodes the model output against the mapping contract.
// Unknown fields, non-array payloads, and empty identifiers are rejected.
func parseMappings(content string) ([]SpeakerMapping, error) {
	cleaned := stripMarkdown(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()

	var mappings []SpeakerMapping
	if err := dec.Decode(&mappings); err != nil {
		return nil, &ValidationError{Reason: "response is not a mapping array", Err: err}
	}
	if len(mappings) == 0 {
		return nil, &ValidationError{Reason: "response contains no mappings"}
	}
	for _, m := range mappings {
		if m.ChunkNumber < 1 {
			return nil, &ValidationError{Reason: fmt.Sprintf("chunk_number %d out of range", m.ChunkNumber)}
		}
		if m.OriginalID == "" || m.GlobalName == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("empty identifier in mapping for chunk %d", m.ChunkNumber)}
		}
	}
	return mappings, nil
}

// warnWithinChunkMerges logs when two distinct labels in the same chunk were
// given the same global name. The mapping is still accepted: the diarization
// itself may have split one person, and the dialogue may contain the
// correction that justified the merge.
func (r *LLMResolver) warnWithinChunkMerges(mappings []SpeakerMapping) {
	byChunkName := make(map[string][]string)
	for _, m := range mappings {
		key := fmt.Sprintf("%d\x00%s", m.ChunkNumber, m.GlobalName)
		byChunkName[key] = append(byChunkName[key], m.OriginalID)
	}
	for key, ids := range byChunkName {
		if len(ids) < 2 {
			continue
		}
		chunk, name, _ := strings.Cut(key, "\x00")
		r.log.Warn("distinct labels merged within one chunk",
			"chunk", chunk,
			"global_name", name,
			"original_ids", strings.Join(ids, ", "))
	}
}

// warnNearDuplicateNames logs global names that look like spelling variants
// of each other, a sign the model split one person into two identities.
func (r *LLMResolver) warnNearDuplicateNames(mappings []SpeakerMapping) {
	for _, pair := range nearDuplicateNames(GlobalNames(mappings)) {
		r.log.Warn("near-duplicate global names in mapping",
			"name_a", pair[0],
			"name_b", pair[1])
	}
}

// GlobalNames returns the distinct global names in mappings, in first
// appearance order.
func GlobalNames(mappings []SpeakerMapping) []string {
	seen := make(map[string]struct{}, len(mappings))
	var names []string
	for _, m := range mappings {
		if _, ok := seen[m.GlobalName]; ok {
			continue
		}
		seen[m.GlobalName] = struct{}{}
		names = append(names, m.GlobalName)
	}
	return names
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
