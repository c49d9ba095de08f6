// Package transcript defines the diarized transcript model shared by the
// whole pipeline: speaker-labelled lines, bounded-size chunks, and the plain
// text wire format (`SPEAKER: utterance`, one turn per line) used both for
// input transcripts and for generated podcast scripts.
package transcript

import (
	"fmt"
	"strings"
)

// Line is a single speaker turn. Order across a transcript is conversational
// and must be preserved by every transformation.
type Line struct {
	// Speaker is the label attributed to the turn. Before reconciliation this
	// is a chunk-local diarization label (e.g. "speaker_0"); afterwards it is
	// a global speaker name.
	Speaker string

	// Text is the utterance, free of timestamps and stage directions.
	Text string
}

// String renders the line in the wire format.
func (l Line) String() string {
	return l.Speaker + ": " + l.Text
}

// Chunk is one contiguous window of a transcript. Indices are 1-based and
// strictly increasing with transcript order. A chunk never splits a single
// speaker turn.
type Chunk struct {
	// Index is the 1-based chunk number.
	Index int

	// Lines are the turns belonging to this chunk, in transcript order.
	Lines []Line
}

// Text renders the chunk's lines in the wire format, one turn per line.
func (c Chunk) Text() string {
	return Render(c.Lines)
}

// size is the chunk's rendered length in characters, used by the chunker to
// enforce the size budget.
func (c Chunk) size() int {
	n := 0
	for _, l := range c.Lines {
		n += lineSize(l)
	}
	return n
}

func lineSize(l Line) int {
	// "SPEAKER: text\n"
	return len(l.Speaker) + 2 + len(l.Text) + 1
}

// Parse reads a transcript in the wire format. Blank lines are skipped. A
// line without a "LABEL:" prefix is treated as a continuation of the previous
// turn; a continuation with no preceding turn is an error.
func Parse(text string) ([]Line, error) {
	var lines []Line
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		speaker, utterance, ok := splitTurn(trimmed)
		if !ok {
			if len(lines) == 0 {
				return nil, fmt.Errorf("transcript: line %d: no speaker label: %q", i+1, trimmed)
			}
			last := &lines[len(lines)-1]
			last.Text += " " + trimmed
			continue
		}
		lines = append(lines, Line{Speaker: speaker, Text: utterance})
	}
	return lines, nil
}

// splitTurn splits "SPEAKER: utterance" into its parts. The label must be
// non-empty and must not itself contain whitespace-separated sentence text;
// a colon later in an unlabelled sentence should not be mistaken for a label
// separator, so only a colon within the first few words qualifies.
func splitTurn(s string) (speaker, text string, ok bool) {
	idx := strings.Index(s, ":")
	if idx <= 0 {
		return "", "", false
	}
	label := strings.TrimSpace(s[:idx])
	if label == "" || strings.Count(label, " ") > 2 {
		return "", "", false
	}
	return label, strings.TrimSpace(s[idx+1:]), true
}

// Render writes lines in the wire format, one turn per line, with a trailing
// newline after each turn. Render(Parse(x)) reproduces a normalised x.
func Render(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Speaker)
		sb.WriteString(": ")
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Speakers returns the distinct speaker labels in order of first appearance.
func Speakers(lines []Line) []string {
	seen := make(map[string]struct{}, 8)
	var out []string
	for _, l := range lines {
		if _, ok := seen[l.Speaker]; ok {
			continue
		}
		seen[l.Speaker] = struct{}{}
		out = append(out, l.Speaker)
	}
	return out
}

// Join concatenates the lines of all chunks in chunk order, reproducing the
// transcript the chunks were split from.
func Join(chunks []Chunk) []Line {
	var n int
	for _, c := range chunks {
		n += len(c.Lines)
	}
	out := make([]Line, 0, n)
	for _, c := range chunks {
		out = append(out, c.Lines...)
	}
	return out
}

// WordCount counts whitespace-separated words across all utterances. Speaker
// labels are not counted.
func WordCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += len(strings.Fields(l.Text))
	}
	return n
}
