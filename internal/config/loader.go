package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"elevenlabs"},
	"tts": {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required; reconciliation and script generation need a reasoning model"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; only pre-transcribed input will work")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; runs will stop after script generation")
	}

	if cfg.Pipeline.TargetMinutes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.target_minutes %.1f must not be negative", cfg.Pipeline.TargetMinutes))
	}
	if cfg.Pipeline.WordsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("pipeline.words_per_minute %d must not be negative", cfg.Pipeline.WordsPerMinute))
	}
	if cfg.Pipeline.MaxChunkChars < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chunk_chars %d must not be negative", cfg.Pipeline.MaxChunkChars))
	}
	if cfg.Pipeline.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retry_attempts %d must not be negative", cfg.Pipeline.RetryAttempts))
	}
	if cfg.Pipeline.ExpectedSpeakers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.expected_speakers %d must not be negative", cfg.Pipeline.ExpectedSpeakers))
	}

	for speaker, voice := range cfg.Voices {
		if voice == "" {
			errs = append(errs, fmt.Errorf("voices[%q] is empty; assign a voice name or ID, or remove the entry to clone instead", speaker))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// SlogLevel converts the configured level to a slog.Level. Unset or invalid
// values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
