// Package synthesize turns a generated podcast script into audio: one
// text-to-speech call per script line, issued concurrently under a bound,
// reassembled in script order, and concatenated into the final artifact.
//
// Voices come from the provider catalogue or are cloned per speaker from
// samples of the source recording; cloned voices are deleted again after the
// run unless the caller opts to keep them.
package synthesize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/podforge-ai/podforge/internal/observe"
	"github.com/podforge-ai/podforge/internal/transcript"
	"github.com/podforge-ai/podforge/pkg/provider/tts"
)

const defaultMaxConcurrent = 4

// Option is a functional option for configuring a [Synthesizer].
type Option func(*Synthesizer)

// WithMaxConcurrent bounds the number of in-flight synthesis requests.
// Default: 4.
func WithMaxConcurrent(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithKeepClonedVoices disables deletion of cloned voices after the run.
func WithKeepClonedVoices() Option {
	return func(s *Synthesizer) {
		s.keepCloned = true
	}
}

// WithMetrics records synthesis latency to m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.log = log
	}
}

// Synthesizer renders scripts to audio through a [tts.Provider]. Safe for
// concurrent use.
type Synthesizer struct {
	tts           tts.Provider
	maxConcurrent int
	keepCloned    bool
	metrics       *observe.Metrics
	log           *slog.Logger
}

// New returns a [Synthesizer] backed by the given provider.
func New(provider tts.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		tts:           provider,
		maxConcurrent: defaultMaxConcurrent,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ResolveVoices maps every speaker to a voice profile. wanted maps speaker
// name to a catalogue voice name or ID; speakers absent from wanted are
// cloned from their entry in samples. A speaker with neither a catalogue
// match nor samples is an error.
//
// The returned cleanup deletes any voices cloned by this call (a no-op when
// none were cloned or the keep option is set); call it after synthesis.
func (s *Synthesizer) ResolveVoices(
	ctx context.Context,
	speakers []string,
	wanted map[string]string,
	samples map[string][][]byte,
) (map[string]tts.VoiceProfile, func(context.Context), error) {
	catalogue, err := s.tts.ListVoices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("synthesize: list voices: %w", err)
	}

	byKey := make(map[string]tts.VoiceProfile, len(catalogue)*2)
	for _, v := range catalogue {
		byKey[v.ID] = v
		byKey[v.Name] = v
	}

	voices := make(map[string]tts.VoiceProfile, len(speakers))
	var clonedIDs []string
	for _, speaker := range speakers {
		if key, ok := wanted[speaker]; ok {
			v, found := byKey[key]
			if !found {
				return nil, nil, fmt.Errorf("synthesize: voice %q for speaker %q not in catalogue", key, speaker)
			}
			voices[speaker] = v
			continue
		}

		sam, ok := samples[speaker]
		if !ok || len(sam) == 0 {
			return nil, nil, fmt.Errorf("synthesize: speaker %q has no assigned voice and no clone samples", speaker)
		}
		profile, err := s.tts.CloneVoice(ctx, speaker, sam)
		if err != nil {
			return nil, nil, fmt.Errorf("synthesize: clone voice for %q: %w", speaker, err)
		}
		s.log.Info("voice cloned", "speaker", speaker, "voice_id", profile.ID)
		voices[speaker] = *profile
		clonedIDs = append(clonedIDs, profile.ID)
	}

	cleanup := func(ctx context.Context) {
		if s.keepCloned {
			return
		}
		for _, id := range clonedIDs {
			if err := s.tts.DeleteVoice(ctx, id); err != nil {
				s.log.Warn("failed to delete cloned voice", "voice_id", id, "error", err)
			}
		}
	}
	return voices, cleanup, nil
}

// Render synthesizes every script line with its speaker's voice and returns
// the concatenated audio. Per-line requests run concurrently under the
// configured bound; output order always follows script order. The script's
// speaker roster must be fully covered by voices.
func (s *Synthesizer) Render(ctx context.Context, lines []transcript.Line, voices map[string]tts.VoiceProfile) ([]byte, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("synthesize: empty script")
	}
	for _, l := range lines {
		if _, ok := voices[l.Speaker]; !ok {
			return nil, fmt.Errorf("synthesize: no voice for speaker %q", l.Speaker)
		}
	}

	start := time.Now()
	segments := make([][]byte, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, l := range lines {
		g.Go(func() error {
			audio, err := s.tts.Convert(gctx, l.Text, voices[l.Speaker])
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", i+1, l.Speaker, err)
			}
			segments[i] = audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	s.metrics.RecordStage(ctx, observe.StageSynthesize, start)

	var total int
	for _, seg := range segments {
		total += len(seg)
	}
	out := make([]byte, 0, total)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	s.log.Info("script synthesized", "lines", len(lines), "bytes", len(out))
	return out, nil
}
