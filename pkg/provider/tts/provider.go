// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform interface for per-line synthesis, streaming synthesis,
// voice catalogue queries, and voice cloning. podforge uses Convert for the
// final podcast assembly (one call per script line, results concatenated in
// script order) and CloneVoice to build a voice per reconciled speaker from
// samples of the source recording.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per script speaker).
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Convert synthesizes text with the given voice and returns the encoded
	// audio bytes (provider-chosen encoding, typically mp3). This is the batch
	// path used for script lines.
	//
	// Returns an error if the voice is unknown, the request fails, or ctx is
	// cancelled.
	Convert(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits raw PCM audio byte slices as they are
	// synthesised. The returned audio channel is closed by the implementation
	// when all text has been synthesised or when ctx is cancelled; the caller
	// must drain it to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// during synthesis are signalled by closing the audio channel early;
	// callers should check ctx.Err() to distinguish cancellation from provider
	// errors.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls if the underlying service adds or removes voices.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// CloneVoice creates a new voice profile named name by training on the
	// supplied audio samples. Each element of samples must be a
	// provider-supported encoded format (e.g., WAV, MP3).
	//
	// This is an expensive operation. Returns the newly created VoiceProfile
	// (with a provider-assigned ID) or an error. An empty samples slice must
	// return an error rather than panic.
	CloneVoice(ctx context.Context, name string, samples [][]byte) (*VoiceProfile, error)

	// DeleteVoice removes a previously cloned voice by its provider-assigned
	// ID. Used to clean up one-shot cloned voices after a podcast run.
	DeleteVoice(ctx context.Context, voiceID string) error
}
