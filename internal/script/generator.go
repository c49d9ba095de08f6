// Package script turns a reconciled transcript into a podcast script of a
// target spoken length via a language-model summarization call.
//
// The generated script keeps the transcript's wire format (`SPEAKER:
// utterance`, one turn per line) so the synthesis stage can consume it with
// the same parser the pipeline uses for input transcripts.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/podforge-ai/podforge/internal/transcript"
	llm "github.com/podforge-ai/podforge/pkg/provider/llm"
)

const (
	// DefaultWordsPerMinute is the speaking-rate assumption used to derive a
	// word-count target from the requested spoken length.
	DefaultWordsPerMinute = 150

	// wordCountTolerance is the accepted relative deviation from the target
	// word count. Length control over a language model is approximate, so
	// exceeding the tolerance is logged, not rejected.
	wordCountTolerance = 0.15

	defaultTemperature = 0.4
)

// systemPromptTemplate carries the editorial rules. The speaker roster,
// length target, and audience are interpolated per request.
const systemPromptTemplate = `You are a podcast script editor. You will receive the full transcript of a multi-speaker conversation and must condense it into a podcast script.

Speakers in this conversation: %s
Target length: %.0f minutes of spoken audio, approximately %d words total.
Target audience: %s
Podcast style: %s

Rules:
- Open with one or two brief introduction lines naming the speakers and the topic.
- Keep each speaker's distinctive vocabulary and preserve any genuine disagreements from the conversation.
- Remove redundant restatements, filler words, and cross-talk that carries no information.
- End with one or two brief closing lines.
- NEVER add facts, opinions, names, or examples that are not present in the transcript. This is summarization, not writing.
- Attribute every line to one of the speakers listed above, exactly as spelled there.

Respond with ONLY the script, one line per utterance, in this exact format (no markdown, no stage directions, no timestamps):
SPEAKER NAME: utterance text`

// GenerationError reports model output that cannot be used as a script:
// unparsable line format or a line attributed to a speaker not present in
// the source transcript.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script generation: %s: %v", e.Reason, e.Err)
	}
	return "script generation: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Params describes the requested script.
type Params struct {
	// TargetMinutes is the desired spoken length of the final podcast.
	TargetMinutes float64

	// Audience is a free-form descriptor ("general", "technical", ...) used
	// only as prompt context; it is not validated against an enum.
	Audience string

	// Style is a free-form podcast style descriptor ("interview",
	// "narrative summary", ...), also prompt context only.
	Style string

	// WordsPerMinute overrides the speaking-rate assumption. Zero means
	// DefaultWordsPerMinute.
	WordsPerMinute int
}

// WordTarget returns the word count derived from the target length and
// speaking rate.
func (p Params) WordTarget() int {
	wpm := p.WordsPerMinute
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return int(math.Round(p.TargetMinutes * float64(wpm)))
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithTemperature sets the sampling temperature. Default: 0.4.
func WithTemperature(temp float64) Option {
	return func(g *Generator) {
		g.temperature = temp
	}
}

// WithLogger sets the logger used for length-tolerance warnings.
// Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// Generator produces podcast scripts from reconciled transcripts. It is safe
// for concurrent use.
type Generator struct {
	llm         llm.Provider
	temperature float64
	log         *slog.Logger
}

// New returns a [Generator] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:         provider,
		temperature: defaultTemperature,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate summarizes lines into a script per params. The input transcript
// is not mutated.
//
// Failure modes:
//   - empty input transcript → *GenerationError
//   - output not parsable as speaker-labelled lines → *GenerationError
//   - output referencing a speaker absent from the input → *GenerationError
//   - transport failure → the provider's error, wrapped
//
// A script whose word count misses the target by more than 15% is accepted
// with a warning; model length control is approximate by nature.
func (g *Generator) Generate(ctx context.Context, lines []transcript.Line, params Params) ([]transcript.Line, error) {
	if len(lines) == 0 {
		return nil, &GenerationError{Reason: "empty transcript"}
	}

	speakers := transcript.Speakers(lines)
	wordTarget := params.WordTarget()

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(speakers, params, wordTarget),
		Temperature:  g.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: transcript.Render(lines)},
		},
	}

	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("script generator: complete: %w", err)
	}

	script, err := parseScript(resp.Content, speakers)
	if err != nil {
		return nil, err
	}

	g.checkLength(script, wordTarget)

	return script, nil
}

func buildSystemPrompt(speakers []string, params Params, wordTarget int) string {
	audience := params.Audience
	if audience == "" {
		audience = "general"
	}
	style := params.Style
	if style == "" {
		style = "conversational summary"
	}
	return fmt.Sprintf(systemPromptTemplate,
		strings.Join(speakers, ", "),
		params.TargetMinutes,
		wordTarget,
		audience,
		style,
	)
}

// parseScript parses the model output back into transcript lines and checks
// that every line's speaker belongs to the source roster.
func parseScript(content string, speakers []string) ([]transcript.Line, error) {
	script, err := transcript.Parse(stripFences(content))
	if err != nil {
		return nil, &GenerationError{Reason: "output is not in speaker-labelled line format", Err: err}
	}
	if len(script) == 0 {
		return nil, &GenerationError{Reason: "output contains no script lines"}
	}

	known := make(map[string]struct{}, len(speakers))
	for _, s := range speakers {
		known[s] = struct{}{}
	}
	for _, l := range script {
		if _, ok := known[l.Speaker]; !ok {
			return nil, &GenerationError{
				Reason: fmt.Sprintf("output references unknown speaker %q", l.Speaker),
			}
		}
	}
	return script, nil
}

func (g *Generator) checkLength(script []transcript.Line, wordTarget int) {
	if wordTarget <= 0 {
		return
	}
	got := transcript.WordCount(script)
	deviation := math.Abs(float64(got-wordTarget)) / float64(wordTarget)
	if deviation > wordCountTolerance {
		g.log.Warn("script word count outside tolerance",
			"words", got,
			"target", wordTarget,
			"deviation", fmt.Sprintf("%.0f%%", deviation*100))
	}
}

// stripFences removes optional markdown code fences around the script.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		if idx := strings.IndexByte(after, '\n'); idx >= 0 {
			s = after[idx+1:]
		} else {
			s = after
		}
	}
	if before, ok := strings.CutSuffix(strings.TrimSpace(s), "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
