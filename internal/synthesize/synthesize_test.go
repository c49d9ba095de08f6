package synthesize_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/podforge-ai/podforge/internal/synthesize"
	"github.com/podforge-ai/podforge/internal/transcript"
	"github.com/podforge-ai/podforge/pkg/provider/tts"
	"github.com/podforge-ai/podforge/pkg/provider/tts/mock"
)

func sampleScript() []transcript.Line {
	return []transcript.Line{
		{Speaker: "Maya", Text: "Welcome to the show."},
		{Speaker: "Jordan", Text: "Great to be here."},
		{Speaker: "Maya", Text: "Let's dive in."},
	}
}

func sampleVoices() map[string]tts.VoiceProfile {
	return map[string]tts.VoiceProfile{
		"Maya":   {ID: "v-maya", Name: "Maya"},
		"Jordan": {ID: "v-jordan", Name: "Jordan"},
	}
}

func TestRender_ConcatenatesInScriptOrder(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	s := synthesize.New(provider, synthesize.WithMaxConcurrent(2))

	audio, err := s.Render(context.Background(), sampleScript(), sampleVoices())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	// The mock fabricates "audio:<voice>:<text>" per line; concatenation
	// order must follow the script regardless of completion order.
	want := bytes.Join([][]byte{
		[]byte("audio:v-maya:Welcome to the show."),
		[]byte("audio:v-jordan:Great to be here."),
		[]byte("audio:v-maya:Let's dive in."),
	}, nil)
	if !bytes.Equal(audio, want) {
		t.Errorf("audio=%q, want %q", audio, want)
	}
	if len(provider.ConvertCalls) != 3 {
		t.Errorf("got %d Convert calls, want 3", len(provider.ConvertCalls))
	}
}

func TestRender_MissingVoiceFails(t *testing.T) {
	t.Parallel()

	s := synthesize.New(&mock.Provider{})
	voices := sampleVoices()
	delete(voices, "Jordan")

	_, err := s.Render(context.Background(), sampleScript(), voices)
	if err == nil || !strings.Contains(err.Error(), "Jordan") {
		t.Fatalf("got %v, want error naming the uncovered speaker", err)
	}
}

func TestRender_ConvertFailureNamesLine(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{ConvertErr: errors.New("voice limit reached")}
	s := synthesize.New(provider)

	_, err := s.Render(context.Background(), sampleScript(), sampleVoices())
	if err == nil || !strings.Contains(err.Error(), "voice limit reached") {
		t.Fatalf("got %v, want the provider error", err)
	}
}

func TestResolveVoices_CataloguePlusClone(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		Voices: []tts.VoiceProfile{
			{ID: "v-1", Name: "Studio Host"},
		},
	}
	s := synthesize.New(provider)

	voices, cleanup, err := s.ResolveVoices(context.Background(),
		[]string{"Maya", "Jordan"},
		map[string]string{"Maya": "Studio Host"},
		map[string][][]byte{"Jordan": {[]byte("sample-audio")}},
	)
	if err != nil {
		t.Fatalf("ResolveVoices returned error: %v", err)
	}

	if voices["Maya"].ID != "v-1" {
		t.Errorf("Maya voice=%q, want catalogue voice v-1", voices["Maya"].ID)
	}
	if !voices["Jordan"].Cloned {
		t.Error("Jordan voice not cloned")
	}
	if len(provider.CloneCalls) != 1 || provider.CloneCalls[0].Name != "Jordan" {
		t.Errorf("CloneCalls=%+v, want one clone for Jordan", provider.CloneCalls)
	}

	cleanup(context.Background())
	if len(provider.DeletedVoiceIDs) != 1 || provider.DeletedVoiceIDs[0] != voices["Jordan"].ID {
		t.Errorf("DeletedVoiceIDs=%v, want the cloned voice deleted", provider.DeletedVoiceIDs)
	}
}

func TestResolveVoices_KeepClonedSkipsDeletion(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	s := synthesize.New(provider, synthesize.WithKeepClonedVoices())

	_, cleanup, err := s.ResolveVoices(context.Background(),
		[]string{"Maya"},
		nil,
		map[string][][]byte{"Maya": {[]byte("sample")}},
	)
	if err != nil {
		t.Fatalf("ResolveVoices returned error: %v", err)
	}
	cleanup(context.Background())
	if len(provider.DeletedVoiceIDs) != 0 {
		t.Errorf("DeletedVoiceIDs=%v, want none with keep option", provider.DeletedVoiceIDs)
	}
}

func TestResolveVoices_UnknownCatalogueVoiceFails(t *testing.T) {
	t.Parallel()

	s := synthesize.New(&mock.Provider{})

	_, _, err := s.ResolveVoices(context.Background(),
		[]string{"Maya"},
		map[string]string{"Maya": "No Such Voice"},
		nil,
	)
	if err == nil || !strings.Contains(err.Error(), "No Such Voice") {
		t.Fatalf("got %v, want error naming the missing catalogue voice", err)
	}
}

func TestResolveVoices_NoVoiceNoSamplesFails(t *testing.T) {
	t.Parallel()

	s := synthesize.New(&mock.Provider{})

	_, _, err := s.ResolveVoices(context.Background(), []string{"Maya"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "Maya") {
		t.Fatalf("got %v, want error naming the uncovered speaker", err)
	}
}
