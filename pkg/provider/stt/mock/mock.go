// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/podforge-ai/podforge/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Audio is the full audio content read from the reader.
	Audio []byte
	// Cfg is the config passed to Transcribe.
	Cfg stt.TranscribeConfig
}

// Provider is a mock implementation of stt.Provider and stt.AudioCleaner.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. May be nil (returns nil, nil).
	Result *stt.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// CleanedAudio is returned by Clean.
	CleanedAudio []byte

	// CleanErr, if non-nil, is returned as the error from Clean.
	CleanErr error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CleanCallCount is the number of times Clean was called.
	CleanCallCount int
}

// Transcribe records the call and returns Result, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, cfg stt.TranscribeConfig) (*stt.Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Audio: data, Cfg: cfg})
	return p.Result, p.TranscribeErr
}

// Clean records the call and returns CleanedAudio, CleanErr.
func (p *Provider) Clean(ctx context.Context, audio io.Reader) ([]byte, error) {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CleanCallCount++
	return p.CleanedAudio, p.CleanErr
}

// Ensure interface conformance at compile time.
var (
	_ stt.Provider     = (*Provider)(nil)
	_ stt.AudioCleaner = (*Provider)(nil)
)
