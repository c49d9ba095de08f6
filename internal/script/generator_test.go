package script_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/podforge-ai/podforge/internal/script"
	"github.com/podforge-ai/podforge/internal/transcript"
	llm "github.com/podforge-ai/podforge/pkg/provider/llm"
	"github.com/podforge-ai/podforge/pkg/provider/llm/mock"
)

func sourceTranscript() []transcript.Line {
	return []transcript.Line{
		{Speaker: "Maya", Text: "Welcome everyone, today we are talking about the migration plan."},
		{Speaker: "Jordan", Text: "Thanks Maya. I think we should move the database first."},
		{Speaker: "Maya", Text: "I disagree, the cache layer is the riskier piece."},
		{Speaker: "Jordan", Text: "Fair point. Let's schedule the cache work for next sprint."},
	}
}

func TestGenerate_ProducesParsedScript(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "Maya: Welcome to the show, I'm here with Jordan to discuss our migration plan.\n" +
			"Jordan: The database should move first, though Maya thinks the cache is riskier.\n" +
			"Maya: Thanks for listening.\n",
	}}
	gen := script.New(mockLLM)

	out, err := gen.Generate(context.Background(), sourceTranscript(), script.Params{TargetMinutes: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d script lines, want 3", len(out))
	}
	if out[0].Speaker != "Maya" || out[1].Speaker != "Jordan" {
		t.Errorf("unexpected speakers: %q, %q", out[0].Speaker, out[1].Speaker)
	}
}

func TestGenerate_PromptCarriesTargets(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "Maya: A short script.\n",
	}}
	gen := script.New(mockLLM)

	params := script.Params{TargetMinutes: 10, Audience: "technical", Style: "interview"}
	if _, err := gen.Generate(context.Background(), sourceTranscript(), params); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	sys := mockLLM.CompleteCalls[0].Req.SystemPrompt
	for _, want := range []string{
		"Maya, Jordan",
		"10 minutes",
		strconv.Itoa(10 * script.DefaultWordsPerMinute),
		"technical",
		"interview",
		"NEVER add facts",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	// The full transcript travels in the user message.
	if user := mockLLM.CompleteCalls[0].Req.Messages[0].Content; !strings.Contains(user, "migration plan") {
		t.Errorf("user message missing transcript content: %q", user)
	}
}

func TestGenerate_UnknownSpeakerIsGenerationError(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "Narrator: And so the meeting began.\n",
	}}
	gen := script.New(mockLLM)

	_, err := gen.Generate(context.Background(), sourceTranscript(), script.Params{TargetMinutes: 1})
	var genErr *script.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("got %v, want *GenerationError", err)
	}
	if !strings.Contains(err.Error(), "Narrator") {
		t.Errorf("error %q does not name the unknown speaker", err)
	}
}

func TestGenerate_UnparsableOutputIsGenerationError(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "here is a script without any speaker labels at all",
	}}
	gen := script.New(mockLLM)

	_, err := gen.Generate(context.Background(), sourceTranscript(), script.Params{TargetMinutes: 1})
	var genErr *script.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("got %v, want *GenerationError", err)
	}
}

func TestGenerate_EmptyTranscriptIsGenerationError(t *testing.T) {
	t.Parallel()

	gen := script.New(&mock.Provider{})
	_, err := gen.Generate(context.Background(), nil, script.Params{TargetMinutes: 1})
	var genErr *script.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("got %v, want *GenerationError", err)
	}
}

func TestGenerate_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```\nMaya: Fenced but valid.\n```",
	}}
	gen := script.New(mockLLM)

	out, err := gen.Generate(context.Background(), sourceTranscript(), script.Params{TargetMinutes: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(out) != 1 || out[0].Text != "Fenced but valid." {
		t.Errorf("got %+v, want single fenced line", out)
	}
}

func TestGenerate_LengthOutsideToleranceIsAccepted(t *testing.T) {
	t.Parallel()

	// A 10-minute target wants ~1500 words; return a dozen, far outside the
	// tolerance but still a valid script.
	mockLLM := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "Maya: This is a deliberately short script of roughly a dozen words total.\n",
	}}
	gen := script.New(mockLLM)

	out, err := gen.Generate(context.Background(), sourceTranscript(), script.Params{TargetMinutes: 10})
	if err != nil {
		t.Fatalf("length deviation must warn, not fail: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d lines, want 1", len(out))
	}
}

func TestParams_WordTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params script.Params
		want   int
	}{
		{"default rate", script.Params{TargetMinutes: 10}, 1500},
		{"custom rate", script.Params{TargetMinutes: 10, WordsPerMinute: 120}, 1200},
		{"fractional minutes", script.Params{TargetMinutes: 2.5}, 375},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.params.WordTarget(); got != tt.want {
				t.Errorf("WordTarget()=%d, want %d", got, tt.want)
			}
		})
	}
}
