package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/podforge-ai/podforge/internal/config"
)

const validYAML = `
log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  llm_fallback:
    name: anthropic
    api_key: sk-ant-test
    model: claude-sonnet-4-5
  stt:
    name: elevenlabs
    api_key: el-test
  tts:
    name: elevenlabs
    api_key: el-test
    model: eleven_multilingual_v2
pipeline:
  max_chunk_chars: 8000
  words_per_minute: 150
  target_minutes: 10
  target_audience: technical
  style: interview
  clean_audio: true
  expected_speakers: 2
  max_concurrent_synthesis: 4
  retry_attempts: 3
store:
  postgres_dsn: postgres://localhost:5432/podforge
voices:
  Maya: Studio Host
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader returned error: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel=%q, want debug", cfg.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("LLM entry=%+v", cfg.Providers.LLM)
	}
	if cfg.Providers.LLMFallback.Name != "anthropic" {
		t.Errorf("LLMFallback.Name=%q, want anthropic", cfg.Providers.LLMFallback.Name)
	}
	if cfg.Pipeline.TargetMinutes != 10 {
		t.Errorf("TargetMinutes=%v, want 10", cfg.Pipeline.TargetMinutes)
	}
	if !cfg.Pipeline.CleanAudio {
		t.Error("CleanAudio=false, want true")
	}
	if cfg.Pipeline.ExpectedSpeakers != 2 {
		t.Errorf("ExpectedSpeakers=%d, want 2", cfg.Pipeline.ExpectedSpeakers)
	}
	if cfg.Voices["Maya"] != "Studio Host" {
		t.Errorf("Voices=%v", cfg.Voices)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
providers:
  llm:
    name: openai
    modle: gpt-4o
`))
	if err == nil {
		t.Fatal("LoadFromReader accepted a config with a misspelled field")
	}
}

func TestValidate_MissingLLMProvider(t *testing.T) {
	t.Parallel()

	err := config.Validate(&config.Config{})
	if err == nil || !strings.Contains(err.Error(), "providers.llm.name") {
		t.Fatalf("got %v, want missing-llm error", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LogLevel: "loud",
		Pipeline: config.PipelineConfig{TargetMinutes: -1, RetryAttempts: -2, ExpectedSpeakers: -1},
		Voices:   map[string]string{"Maya": ""},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{"log_level", "providers.llm.name", "target_minutes", "retry_attempts", "expected_speakers", `voices["Maya"]`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestRegistry_UnregisteredProvider(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateLLM(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("got %v, want ErrProviderNotRegistered", err)
	}
}

func TestDefaultRegistry_CreatesBuiltins(t *testing.T) {
	t.Parallel()

	r := config.DefaultRegistry()

	if _, err := r.CreateLLM(config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o"}); err != nil {
		t.Errorf("CreateLLM(openai): %v", err)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: "elevenlabs", APIKey: "el-test"}); err != nil {
		t.Errorf("CreateSTT(elevenlabs): %v", err)
	}
	if _, err := r.CreateTTS(config.ProviderEntry{Name: "elevenlabs", APIKey: "el-test"}); err != nil {
		t.Errorf("CreateTTS(elevenlabs): %v", err)
	}
}
