// Package elevenlabs provides an STT provider backed by the ElevenLabs
// Scribe speech-to-text API, plus the audio-isolation (noise removal)
// endpoint. It implements stt.Provider and stt.AudioCleaner.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/podforge-ai/podforge/pkg/provider/stt"
)

const (
	sttEndpoint       = "https://api.elevenlabs.io/v1/speech-to-text"
	isolationEndpoint = "https://api.elevenlabs.io/v1/audio-isolation"
	defaultModel      = "scribe_v1"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Scribe model ID (e.g., "scribe_v1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient overrides the default HTTP client. Used by tests to point at
// a local server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithBaseURL overrides the API base endpoints (testing against a local server).
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.sttURL = base + "/v1/speech-to-text"
		p.isolationURL = base + "/v1/audio-isolation"
	}
}

// Provider implements stt.Provider backed by the ElevenLabs Scribe API.
type Provider struct {
	apiKey       string
	model        string
	httpClient   *http.Client
	sttURL       string
	isolationURL string
}

// New creates a new ElevenLabs STT Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		httpClient:   &http.Client{},
		sttURL:       sttEndpoint,
		isolationURL: isolationEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- API response types ----

// scribeWord is a single word entry in the Scribe response. Type
// distinguishes words from spacing and audio-event entries.
type scribeWord struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type"`
	SpeakerID string  `json:"speaker_id"`
}

// scribeResponse is the top-level Scribe transcription response.
type scribeResponse struct {
	LanguageCode string       `json:"language_code"`
	Text         string       `json:"text"`
	Words        []scribeWord `json:"words"`
}

// Transcribe implements stt.Provider. It uploads the audio as multipart form
// data with diarization enabled and folds the word-level response into
// speaker turns.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, cfg stt.TranscribeConfig) (*stt.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio")
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return nil, fmt.Errorf("elevenlabs: copy audio: %w", err)
	}

	fields := map[string]string{
		"model_id":         p.model,
		"diarize":          "true",
		"tag_audio_events": strconv.FormatBool(cfg.TagAudioEvents),
	}
	if cfg.SpeakersExpected > 0 {
		fields["num_speakers"] = strconv.Itoa(cfg.SpeakersExpected)
	}
	if cfg.Language != "" {
		fields["language_code"] = cfg.Language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("elevenlabs: write field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("elevenlabs: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sttURL, &body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: transcribe request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: transcribe HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: transcribe: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var sr scribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("elevenlabs: transcribe decode: %w", err)
	}

	return &stt.Result{
		Utterances: foldWords(sr.Words),
		Language:   sr.LanguageCode,
	}, nil
}

// Clean implements stt.AudioCleaner using the audio-isolation endpoint.
// The response body is the cleaned audio (mp3).
func (p *Provider) Clean(ctx context.Context, audio io.Reader) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "audio")
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return nil, fmt.Errorf("elevenlabs: copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("elevenlabs: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.isolationURL, &body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: isolation request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: isolation HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: isolation: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	cleaned, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: isolation read body: %w", err)
	}
	return cleaned, nil
}

// foldWords collapses the word-level Scribe output into contiguous speaker
// turns. Spacing and audio-event entries are dropped; words within a turn
// are rejoined with single spaces regardless of the spacing the API emits.
func foldWords(words []scribeWord) []stt.Utterance {
	var utterances []stt.Utterance
	var cur *stt.Utterance
	var text bytes.Buffer

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = text.String()
		if cur.Text != "" {
			utterances = append(utterances, *cur)
		}
		cur = nil
		text.Reset()
	}

	for _, w := range words {
		if w.Type == "audio_event" || w.Type == "spacing" {
			continue
		}
		word := strings.TrimSpace(w.Text)
		if word == "" {
			continue
		}
		if cur == nil || w.SpeakerID != cur.SpeakerID {
			flush()
			cur = &stt.Utterance{SpeakerID: w.SpeakerID, Start: w.Start}
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(word)
		cur.End = w.End
	}
	flush()

	return utterances
}

// Ensure interface conformance at compile time.
var (
	_ stt.Provider     = (*Provider)(nil)
	_ stt.AudioCleaner = (*Provider)(nil)
)
