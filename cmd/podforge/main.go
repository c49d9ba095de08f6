// Command podforge converts a multi-speaker recording into a shortened,
// narrated podcast: transcribe, reconcile speakers, generate a script, and
// synthesize audio.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/podforge-ai/podforge/internal/config"
	"github.com/podforge-ai/podforge/internal/observe"
	"github.com/podforge-ai/podforge/internal/pipeline"
	"github.com/podforge-ai/podforge/internal/reconcile"
	"github.com/podforge-ai/podforge/internal/resilience"
	"github.com/podforge-ai/podforge/internal/script"
	"github.com/podforge-ai/podforge/internal/store/postgres"
	"github.com/podforge-ai/podforge/internal/synthesize"
	"github.com/podforge-ai/podforge/internal/transcript"
	"github.com/podforge-ai/podforge/pkg/provider/llm"
	"github.com/podforge-ai/podforge/pkg/provider/stt"
	"github.com/podforge-ai/podforge/pkg/provider/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "source recording to transcribe (requires an stt provider)")
	transcriptPath := flag.String("transcript", "", "pre-transcribed input in SPEAKER: text format (alternative to -audio)")
	episodeID := flag.String("episode", "", "episode identifier; defaults to the input file name")
	minutes := flag.Float64("minutes", 0, "target podcast length in minutes; overrides the config default")
	audience := flag.String("audience", "", "target audience descriptor; overrides the config default")
	style := flag.String("style", "", "podcast style descriptor; overrides the config default")
	scriptPath := flag.String("script", "", "write the generated script to this file (default: stdout)")
	outPath := flag.String("out", "", "synthesize the script and write audio to this file (requires a tts provider)")
	estimate := flag.Bool("estimate", false, "print a cost estimate and exit without calling any provider")
	audioMinutes := flag.Float64("audio-minutes", 0, "source recording length in minutes, used by -estimate")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "podforge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "podforge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// ── Cost estimate (offline) ───────────────────────────────────────────────
	if *estimate {
		return printEstimate(cfg, *audioMinutes, *minutes)
	}

	if *audioPath == "" && *transcriptPath == "" {
		fmt.Fprintln(os.Stderr, "podforge: need -audio or -transcript (or -estimate)")
		return 2
	}
	if *audioPath != "" && *transcriptPath != "" {
		fmt.Fprintln(os.Stderr, "podforge: -audio and -transcript are mutually exclusive")
		return 2
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "podforge"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.DefaultRegistry()

	llmProvider, err := buildLLM(cfg, reg)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	var sttProvider stt.Provider
	if *audioPath != "" {
		if cfg.Providers.STT.Name == "" {
			fmt.Fprintln(os.Stderr, "podforge: -audio requires providers.stt in the config")
			return 2
		}
		sttProvider, err = reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			slog.Error("failed to build stt provider", "err", err)
			return 1
		}
	}

	var ttsProvider tts.Provider
	if *outPath != "" {
		if cfg.Providers.TTS.Name == "" {
			fmt.Fprintln(os.Stderr, "podforge: -out requires providers.tts in the config")
			return 2
		}
		ttsProvider, err = reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			slog.Error("failed to build tts provider", "err", err)
			return 1
		}
	}

	// ── Episode store (optional) ──────────────────────────────────────────────
	var store pipeline.Store
	if dsn := cfg.Store.PostgresDSN; dsn != "" {
		pgStore, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to episode store", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		slog.Info("episode store connected")
	}

	printStartupSummary(cfg, store != nil)

	// ── Input ─────────────────────────────────────────────────────────────────
	episode := *episodeID
	lines, err := loadInput(ctx, cfg, sttProvider, *audioPath, *transcriptPath)
	if err != nil {
		slog.Error("failed to load input", "err", err)
		return 1
	}
	if episode == "" {
		episode = defaultEpisodeID(*audioPath, *transcriptPath)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	params := script.Params{
		TargetMinutes:  cfg.Pipeline.TargetMinutes,
		Audience:       cfg.Pipeline.TargetAudience,
		Style:          cfg.Pipeline.Style,
		WordsPerMinute: cfg.Pipeline.WordsPerMinute,
	}
	if *minutes > 0 {
		params.TargetMinutes = *minutes
	}
	if *audience != "" {
		params.Audience = *audience
	}
	if *style != "" {
		params.Style = *style
	}

	opts := []pipeline.Option{
		pipeline.WithRetry(resilience.RetryConfig{Attempts: cfg.Pipeline.RetryAttempts}),
	}
	if store != nil {
		opts = append(opts, pipeline.WithStore(store))
	}
	p := pipeline.New(
		transcript.NewChunker(cfg.Pipeline.MaxChunkChars),
		reconcile.NewLLMResolver(llmProvider),
		script.New(llmProvider),
		opts...,
	)

	result, err := p.Run(ctx, episode, lines, params)
	if err != nil {
		slog.Error("conversion failed", "episode", episode, "err", err)
		return 1
	}

	// ── Script output ─────────────────────────────────────────────────────────
	rendered := transcript.Render(result.Script)
	if *scriptPath != "" {
		if err := os.WriteFile(*scriptPath, []byte(rendered), 0o644); err != nil {
			slog.Error("failed to write script", "path", *scriptPath, "err", err)
			return 1
		}
		slog.Info("script written", "path", *scriptPath, "words", result.ScriptWords)
	} else {
		fmt.Print(rendered)
	}

	// ── Synthesis (optional) ──────────────────────────────────────────────────
	if ttsProvider != nil {
		if err := synthesizeScript(ctx, cfg, ttsProvider, result, *outPath); err != nil {
			slog.Error("synthesis failed", "episode", episode, "err", err)
			return 1
		}
	}

	slog.Info("done", "episode", episode, "chunks", result.Chunks, "script_words", result.ScriptWords)
	return 0
}

// buildLLM creates the primary reasoning provider and, when a fallback entry
// is configured, wraps both in a circuit-breaking failover group. Each
// provider is instrumented so completion calls show up in the request and
// error counters under its own name.
func buildLLM(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	created, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	primary := observe.InstrumentLLM(cfg.Providers.LLM.Name, created, nil)
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	fbEntry := cfg.Providers.LLMFallback
	if fbEntry.Name == "" {
		return primary, nil
	}
	fb, err := reg.CreateLLM(fbEntry)
	if err != nil {
		return nil, fmt.Errorf("create llm fallback %q: %w", fbEntry.Name, err)
	}
	group := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	group.AddFallback(fbEntry.Name, observe.InstrumentLLM(fbEntry.Name, fb, nil))
	slog.Info("provider created", "kind", "llm_fallback", "name", fbEntry.Name, "model", fbEntry.Model)
	return group, nil
}

// loadInput produces the diarized transcript either by reading a wire-format
// file or by transcribing the source recording.
func loadInput(ctx context.Context, cfg *config.Config, sttProvider stt.Provider, audioPath, transcriptPath string) ([]transcript.Line, error) {
	if transcriptPath != "" {
		raw, err := os.ReadFile(transcriptPath)
		if err != nil {
			return nil, err
		}
		return transcript.Parse(string(raw))
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}

	metrics := observe.DefaultMetrics()
	sttName := cfg.Providers.STT.Name

	if cfg.Pipeline.CleanAudio {
		cleaner, ok := sttProvider.(stt.AudioCleaner)
		if !ok {
			slog.Warn("clean_audio is enabled but the stt provider cannot clean audio; skipping")
		} else {
			slog.Info("cleaning audio", "bytes", len(audio))
			start := time.Now()
			cleaned, err := cleaner.Clean(ctx, bytes.NewReader(audio))
			metrics.RecordProviderCall(ctx, sttName, "clean", err)
			if err != nil {
				return nil, fmt.Errorf("clean audio: %w", err)
			}
			metrics.RecordStage(ctx, observe.StageClean, start)
			audio = cleaned
		}
	}

	slog.Info("transcribing", "path", audioPath, "bytes", len(audio))
	start := time.Now()
	res, err := sttProvider.Transcribe(ctx, bytes.NewReader(audio), stt.TranscribeConfig{
		SpeakersExpected: cfg.Pipeline.ExpectedSpeakers,
	})
	metrics.RecordProviderCall(ctx, sttName, "transcribe", err)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	metrics.RecordStage(ctx, observe.StageTranscribe, start)

	lines := make([]transcript.Line, 0, len(res.Utterances))
	for _, u := range res.Utterances {
		lines = append(lines, transcript.Line{Speaker: u.SpeakerID, Text: u.Text})
	}
	return lines, nil
}

// synthesizeScript resolves a voice per speaker from the configured
// assignments and renders the script to the output file. Cloning is not
// available from the CLI yet, so every script speaker must appear in the
// voices config block.
func synthesizeScript(ctx context.Context, cfg *config.Config, provider tts.Provider, result *pipeline.Result, outPath string) error {
	var opts []synthesize.Option
	if cfg.Pipeline.MaxConcurrentSynthesis > 0 {
		opts = append(opts, synthesize.WithMaxConcurrent(cfg.Pipeline.MaxConcurrentSynthesis))
	}
	if cfg.Pipeline.KeepClonedVoices {
		opts = append(opts, synthesize.WithKeepClonedVoices())
	}
	synth := synthesize.New(provider, opts...)

	voices, cleanup, err := synth.ResolveVoices(ctx, result.Speakers(), cfg.Voices, nil)
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	audio, err := synth.Render(ctx, result.Script, voices)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	slog.Info("audio written", "path", outPath, "bytes", len(audio))
	return nil
}

// printEstimate projects the USD spend for a conversion and prints the
// breakdown without touching any provider.
func printEstimate(cfg *config.Config, audioMinutes, targetMinutes float64) int {
	if audioMinutes <= 0 {
		fmt.Fprintln(os.Stderr, "podforge: -estimate needs -audio-minutes")
		return 2
	}
	if targetMinutes <= 0 {
		targetMinutes = cfg.Pipeline.TargetMinutes
	}
	cloneSpeakers := 0
	if len(cfg.Voices) == 0 {
		// No assignments configured: assume two cloned voices as a baseline.
		cloneSpeakers = 2
	}
	est := pipeline.EstimateCost(pipeline.CostParams{
		AudioLength:       time.Duration(audioMinutes * float64(time.Minute)),
		TargetLength:      time.Duration(targetMinutes * float64(time.Minute)),
		Clean:             cfg.Pipeline.CleanAudio,
		CloneSpeakers:     cloneSpeakers,
		CloneSampleLength: time.Minute,
	})
	fmt.Println(est)
	return 0
}

// defaultEpisodeID derives an episode identifier from the input file name,
// falling back to a timestamp when nothing usable is available.
func defaultEpisodeID(audioPath, transcriptPath string) string {
	path := audioPath
	if path == "" {
		path = transcriptPath
	}
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if id == "" || id == "." {
		return "episode-" + time.Now().Format("20060102-150405")
	}
	return id
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, storeConnected bool) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║        podforge — startup summary     ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("LLM fallback", cfg.Providers.LLMFallback.Name, cfg.Providers.LLMFallback.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	store := "(disabled)"
	if storeConnected {
		store = "postgres"
	}
	fmt.Fprintf(os.Stderr, "║  Episode store   : %-18s ║\n", store)
	fmt.Fprintf(os.Stderr, "║  Voice mappings  : %-18d ║\n", len(cfg.Voices))
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 18 {
		value = value[:15] + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-12s    : %-18s ║\n", kind, value)
}
