package openai

import (
	"testing"

	"github.com/podforge-ai/podforge/pkg/provider/llm"
)

// TestBuildParams_SystemPromptFirst checks that the system prompt is placed
// before the conversation messages.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You reconcile speakers.",
		Messages: []llm.Message{
			{Role: "user", Content: "CHUNK 1: ..."},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Fatal("expected first message to be the system prompt")
	}
	if params.Messages[1].OfUser == nil {
		t.Fatal("expected second message to be the user message")
	}
}

// TestBuildParams_Roles checks role conversion for every supported role.
func TestBuildParams_Roles(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "rules"},
			{Role: "user", Content: "question"},
			{Role: "assistant", Content: "answer"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected OfSystem for system role")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected OfUser for user role")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("expected OfAssistant for assistant role")
	}
}

// TestBuildParams_UnknownRole checks that unknown roles return an error.
func TestBuildParams_UnknownRole(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "tool", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams_Sampling checks that temperature and max tokens carry over.
func TestBuildParams_Sampling(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.1 {
		t.Errorf("temperature not set: %+v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 256 {
		t.Errorf("max completion tokens not set: %+v", params.MaxCompletionTokens)
	}
}

// TestModelCapabilities_GPT4o checks gpt-4o capabilities.
func TestModelCapabilities_GPT4o(t *testing.T) {
	caps := modelCapabilities("gpt-4o")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o: expected context window 128000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o: expected max output 16384, got %d", caps.MaxOutputTokens)
	}
	if !caps.SupportsJSONOutput {
		t.Error("gpt-4o: expected SupportsJSONOutput=true")
	}
}

// TestModelCapabilities_GPT35Turbo checks gpt-3.5-turbo capabilities.
func TestModelCapabilities_GPT35Turbo(t *testing.T) {
	caps := modelCapabilities("gpt-3.5-turbo")
	if caps.ContextWindow != 16_385 {
		t.Errorf("gpt-3.5-turbo: expected context window 16385, got %d", caps.ContextWindow)
	}
}

// TestModelCapabilities_UnknownModel checks defaults for unrecognised models.
func TestModelCapabilities_UnknownModel(t *testing.T) {
	caps := modelCapabilities("my-custom-model")
	// Should return sensible defaults without panicking.
	if caps.ContextWindow <= 0 {
		t.Error("unknown model: expected positive ContextWindow")
	}
	if caps.MaxOutputTokens <= 0 {
		t.Error("unknown model: expected positive MaxOutputTokens")
	}
}

// TestCountTokens_Estimation checks that token counting returns a reasonable value.
func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	count, err := p.CountTokens([]llm.Message{
		{Role: "user", Content: "Hello world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}
