package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Per-operation USD rates for the hosted audio services. Cleaning is billed
// in credits (1000 per audio minute at $5 per 30000 credits); transcription
// per audio hour; synthesis per output minute; cloning per sample minute.
const (
	cleanCreditsPerMinute = 1000
	creditUSD             = 5.0 / 30000

	transcribeUSDPerHour = 0.40
	synthesizeUSDPerMin  = 0.17
	cloneUSDPerMinute    = 5.0 / 30
)

// CostEstimate breaks down the projected USD spend for one conversion so
// the operator can confirm before any billable call is made.
type CostEstimate struct {
	// CleanUSD is the audio-isolation cost over the full source audio.
	// Zero when cleaning is disabled.
	CleanUSD float64

	// TranscribeUSD is the diarized transcription cost over the source audio.
	TranscribeUSD float64

	// CloneUSD is the voice-cloning cost: one clone per speaker, each
	// trained on a sample of the source audio.
	CloneUSD float64

	// SynthesizeUSD is the text-to-speech cost over the target podcast length.
	SynthesizeUSD float64
}

// Total sums all components.
func (c CostEstimate) Total() float64 {
	return c.CleanUSD + c.TranscribeUSD + c.CloneUSD + c.SynthesizeUSD
}

// String formats the estimate as a human-readable breakdown.
func (c CostEstimate) String() string {
	var sb strings.Builder
	if c.CleanUSD > 0 {
		fmt.Fprintf(&sb, "audio cleaning: $%.2f\n", c.CleanUSD)
	}
	fmt.Fprintf(&sb, "transcription: $%.2f\n", c.TranscribeUSD)
	if c.CloneUSD > 0 {
		fmt.Fprintf(&sb, "voice cloning: $%.2f\n", c.CloneUSD)
	}
	fmt.Fprintf(&sb, "text-to-speech: $%.2f\n", c.SynthesizeUSD)
	fmt.Fprintf(&sb, "total: $%.2f", c.Total())
	return sb.String()
}

// CostParams describes the billable dimensions of a planned conversion.
type CostParams struct {
	// AudioLength is the duration of the source recording.
	AudioLength time.Duration

	// TargetLength is the desired podcast duration (the synthesis volume).
	TargetLength time.Duration

	// Clean enables the audio-isolation pass over the full recording.
	Clean bool

	// CloneSpeakers is the number of voices to clone; zero when using
	// catalogue voices.
	CloneSpeakers int

	// CloneSampleLength is the audio sample length used per cloned voice.
	CloneSampleLength time.Duration
}

// EstimateCost projects the USD spend for a conversion before it runs.
func EstimateCost(p CostParams) CostEstimate {
	var est CostEstimate
	if p.Clean {
		est.CleanUSD = p.AudioLength.Minutes() * cleanCreditsPerMinute * creditUSD
	}
	est.TranscribeUSD = p.AudioLength.Hours() * transcribeUSDPerHour
	if p.CloneSpeakers > 0 {
		perClone := p.CloneSampleLength.Minutes() * cloneUSDPerMinute
		est.CloneUSD = float64(p.CloneSpeakers) * perClone
	}
	est.SynthesizeUSD = p.TargetLength.Minutes() * synthesizeUSDPerMin
	return est
}
