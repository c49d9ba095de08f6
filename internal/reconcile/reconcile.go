// Package reconcile resolves chunk-local diarization labels into a single
// global speaker identity space spanning the whole transcript.
//
// Diarization services emit anonymous per-chunk labels ("speaker_0",
// "speaker_1") with no guarantee of consistency across chunks. The
// [Resolver] produces a [SpeakerMapping] list covering every (chunk, label)
// pair, using only textual evidence (names spoken in dialogue, addressed-to
// cues) and never acoustic features. [Apply] then rewrites
// the chunks into one continuous transcript under the resolved names.
//
// Resolution is isolated behind the Resolver interface so the strategy (LLM
// call, rule-based heuristic, human review) is swappable without touching
// mapping application or script generation.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/podforge-ai/podforge/internal/transcript"
)

// SpeakerMapping assigns one chunk-local speaker label to a global name.
// The JSON field names are the interchange contract with the reasoning
// engine and must not change.
type SpeakerMapping struct {
	// ChunkNumber is the 1-based index of the chunk the label appears in.
	ChunkNumber int `json:"chunk_number"`

	// OriginalID is the chunk-local diarization label, e.g. "speaker_0".
	OriginalID string `json:"original_id"`

	// GlobalName is the resolved identity: a name spoken in the dialogue
	// when available, otherwise a stable placeholder ("Speaker N").
	GlobalName string `json:"global_name"`
}

// SpeakerRef identifies one (chunk, chunk-local label) pair, used in error
// reporting.
type SpeakerRef struct {
	ChunkNumber int
	OriginalID  string
}

func (r SpeakerRef) String() string {
	return fmt.Sprintf("chunk %d %s", r.ChunkNumber, r.OriginalID)
}

// Resolver produces a complete speaker mapping for a set of chunks. The
// returned list must cover exactly the (chunk, label) pairs present in the
// input; implementations validate this before returning.
type Resolver interface {
	Resolve(ctx context.Context, chunks []transcript.Chunk) ([]SpeakerMapping, error)
}

// ValidationError reports structurally malformed resolver output: responses
// that cannot be parsed against the mapping contract, carry unknown fields,
// or contain empty identifiers.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speaker mapping validation: %s: %v", e.Reason, e.Err)
	}
	return "speaker mapping validation: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CoverageError reports a mapping whose (chunk, label) pair set does not
// equal the set present in the source chunks.
type CoverageError struct {
	// Missing are pairs present in the chunks but absent from the mapping.
	Missing []SpeakerRef

	// Extra are pairs in the mapping that appear in no chunk.
	Extra []SpeakerRef

	// Duplicated are pairs mapped more than once.
	Duplicated []SpeakerRef
}

func (e *CoverageError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "unmapped: "+refList(e.Missing))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "not in source: "+refList(e.Extra))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "mapped more than once: "+refList(e.Duplicated))
	}
	return "speaker mapping coverage: " + strings.Join(parts, "; ")
}

func refList(refs []SpeakerRef) string {
	ss := make([]string, len(refs))
	for i, r := range refs {
		ss[i] = r.String()
	}
	return strings.Join(ss, ", ")
}

// LookupError reports a transcript line whose (chunk, label) pair has no
// mapping entry during application.
type LookupError struct {
	Ref SpeakerRef
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("speaker mapping lookup: no entry for %s", e.Ref)
}

// sourceRefs returns the distinct (chunk, label) pairs present in chunks,
// ordered by chunk then first appearance.
func sourceRefs(chunks []transcript.Chunk) []SpeakerRef {
	seen := make(map[SpeakerRef]struct{})
	var refs []SpeakerRef
	for _, c := range chunks {
		for _, l := range c.Lines {
			ref := SpeakerRef{ChunkNumber: c.Index, OriginalID: l.Speaker}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// ValidateCoverage checks that mappings cover exactly the (chunk, label)
// pairs present in chunks, with no duplicates. Returns a *CoverageError
// describing every discrepancy, or nil.
func ValidateCoverage(chunks []transcript.Chunk, mappings []SpeakerMapping) error {
	source := make(map[SpeakerRef]struct{})
	for _, r := range sourceRefs(chunks) {
		source[r] = struct{}{}
	}

	mapped := make(map[SpeakerRef]int, len(mappings))
	for _, m := range mappings {
		mapped[SpeakerRef{ChunkNumber: m.ChunkNumber, OriginalID: m.OriginalID}]++
	}

	var cov CoverageError
	for _, r := range sourceRefs(chunks) {
		if mapped[r] == 0 {
			cov.Missing = append(cov.Missing, r)
		}
	}
	for ref, n := range mapped {
		if _, ok := source[ref]; !ok {
			cov.Extra = append(cov.Extra, ref)
		}
		if n > 1 {
			cov.Duplicated = append(cov.Duplicated, ref)
		}
	}
	sortRefs(cov.Extra)
	sortRefs(cov.Duplicated)

	if len(cov.Missing) > 0 || len(cov.Extra) > 0 || len(cov.Duplicated) > 0 {
		return &cov
	}
	return nil
}

func sortRefs(refs []SpeakerRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ChunkNumber != refs[j].ChunkNumber {
			return refs[i].ChunkNumber < refs[j].ChunkNumber
		}
		return refs[i].OriginalID < refs[j].OriginalID
	})
}
