// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/podforge-ai/podforge/pkg/provider/tts"
)

// ConvertCall records a single invocation of Convert.
type ConvertCall struct {
	// Text is the text passed to Convert.
	Text string
	// Voice is the voice passed to Convert.
	Voice tts.VoiceProfile
}

// CloneCall records a single invocation of CloneVoice.
type CloneCall struct {
	// Name is the requested voice name.
	Name string
	// SampleCount is the number of samples supplied.
	SampleCount int
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// ConvertAudio is returned by Convert. When nil, Convert fabricates a
	// deterministic payload derived from the input text so callers can assert
	// segment ordering.
	ConvertAudio []byte

	// ConvertErr, if non-nil, is returned as the error from Convert.
	ConvertErr error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// ListErr, if non-nil, is returned as the error from ListVoices.
	ListErr error

	// CloneErr, if non-nil, is returned as the error from CloneVoice.
	CloneErr error

	// DeleteErr, if non-nil, is returned as the error from DeleteVoice.
	DeleteErr error

	// StreamChunks is the sequence of audio chunks emitted by SynthesizeStream.
	StreamChunks [][]byte

	// --- Call records (read after test) ---

	// ConvertCalls records every invocation of Convert in order.
	ConvertCalls []ConvertCall

	// CloneCalls records every invocation of CloneVoice in order.
	CloneCalls []CloneCall

	// DeletedVoiceIDs records every voice ID passed to DeleteVoice.
	DeletedVoiceIDs []string

	cloneSeq int
}

// Convert records the call and returns the configured audio.
func (p *Provider) Convert(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConvertCalls = append(p.ConvertCalls, ConvertCall{Text: text, Voice: voice})
	if p.ConvertErr != nil {
		return nil, p.ConvertErr
	}
	if p.ConvertAudio != nil {
		return p.ConvertAudio, nil
	}
	return []byte("audio:" + voice.ID + ":" + text), nil
}

// SynthesizeStream drains the text channel and emits StreamChunks.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	chunks := make([][]byte, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.mu.Unlock()

	out := make(chan []byte, len(chunks))
	go func() {
		defer close(out)
		for range text {
			// Drain; the mock does not synthesise per-fragment.
		}
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListVoices returns Voices, ListErr.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.ListErr
}

// CloneVoice records the call and returns a profile with a synthetic ID.
func (p *Provider) CloneVoice(ctx context.Context, name string, samples [][]byte) (*tts.VoiceProfile, error) {
	if len(samples) == 0 {
		return nil, errors.New("mock: clone requires at least one sample")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloneCalls = append(p.CloneCalls, CloneCall{Name: name, SampleCount: len(samples)})
	if p.CloneErr != nil {
		return nil, p.CloneErr
	}
	p.cloneSeq++
	return &tts.VoiceProfile{
		ID:       fmt.Sprintf("cloned-%d", p.cloneSeq),
		Name:     name,
		Provider: "mock",
		Cloned:   true,
	}, nil
}

// DeleteVoice records the call and returns DeleteErr.
func (p *Provider) DeleteVoice(ctx context.Context, voiceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DeletedVoiceIDs = append(p.DeletedVoiceIDs, voiceID)
	return p.DeleteErr
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
