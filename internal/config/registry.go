package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/podforge-ai/podforge/pkg/provider/llm"
	"github.com/podforge-ai/podforge/pkg/provider/llm/anyllm"
	"github.com/podforge-ai/podforge/pkg/provider/llm/openai"
	"github.com/podforge-ai/podforge/pkg/provider/stt"
	sttelevenlabs "github.com/podforge-ai/podforge/pkg/provider/stt/elevenlabs"
	"github.com/podforge-ai/podforge/pkg/provider/tts"
	ttselevenlabs "github.com/podforge-ai/podforge/pkg/provider/tts/elevenlabs"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] with all built-in providers
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterLLM("openai", func(e ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})

	// The remaining reasoning backends go through the any-llm-go adapter.
	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		r.RegisterLLM(name, func(e ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}

	r.RegisterSTT("elevenlabs", func(e ProviderEntry) (stt.Provider, error) {
		var opts []sttelevenlabs.Option
		if e.Model != "" {
			opts = append(opts, sttelevenlabs.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, sttelevenlabs.WithBaseURL(e.BaseURL))
		}
		return sttelevenlabs.New(e.APIKey, opts...)
	})

	r.RegisterTTS("elevenlabs", func(e ProviderEntry) (tts.Provider, error) {
		var opts []ttselevenlabs.Option
		if e.Model != "" {
			opts = append(opts, ttselevenlabs.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, ttselevenlabs.WithBaseURL(e.BaseURL))
		}
		return ttselevenlabs.New(e.APIKey, opts...)
	})

	return r
}

// RegisterLLM registers an LLM provider factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
