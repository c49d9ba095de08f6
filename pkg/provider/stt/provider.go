// Package stt defines the Provider interface for batch Speech-to-Text
// backends with speaker diarization.
//
// Unlike a live captioning system, podforge transcribes complete recordings in
// one call-through to a hosted API. The provider returns speaker-attributed
// utterances whose speaker IDs are anonymous and transcription-local; the
// reconciliation stage later resolves them into stable global identities.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"io"
)

// TranscribeConfig carries recognition hints for a transcription request.
type TranscribeConfig struct {
	// SpeakersExpected is the number of distinct speakers the diarizer should
	// assume. Zero lets the provider auto-detect.
	SpeakersExpected int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// TagAudioEvents asks the provider to annotate non-speech events (laughs,
	// applause). podforge leaves this off: the downstream script format carries
	// no stage directions.
	TagAudioEvents bool
}

// Utterance is one contiguous speaker turn in a transcription result.
type Utterance struct {
	// SpeakerID is the diarizer-assigned anonymous label (e.g., "speaker_0").
	// It is only meaningful within the transcription that produced it.
	SpeakerID string

	// Text is the spoken content of the turn.
	Text string

	// Start and End are offsets from the beginning of the audio, in seconds.
	// Used for extracting voice-clone samples.
	Start float64
	End   float64
}

// Result is the outcome of a single transcription call.
type Result struct {
	// Utterances is the ordered list of speaker turns.
	Utterances []Utterance

	// Language is the language the provider detected or was told to use.
	Language string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe sends the complete audio to the provider and returns
	// speaker-attributed utterances. The audio format is whatever the provider
	// accepts (mp3, wav, …); callers pass the file content unmodified.
	//
	// Returns an error if the request fails or ctx is cancelled.
	Transcribe(ctx context.Context, audio io.Reader, cfg TranscribeConfig) (*Result, error)
}

// AudioCleaner is an optional capability: removing background noise from a
// recording before transcription. Providers that support it (e.g., the
// ElevenLabs audio-isolation endpoint) implement this alongside Provider.
type AudioCleaner interface {
	// Clean sends audio to the provider's noise-removal endpoint and returns
	// the cleaned audio bytes (provider-chosen encoding, typically mp3).
	Clean(ctx context.Context, audio io.Reader) ([]byte, error)
}
