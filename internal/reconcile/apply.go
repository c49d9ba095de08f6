package reconcile

import (
	"github.com/podforge-ai/podforge/internal/transcript"
)

// Apply rewrites the chunks into one continuous transcript with every
// chunk-local label replaced by its resolved global name. Input chunks are
// not mutated; the returned lines are freshly allocated.
//
// Every line's (chunk, label) pair must have a mapping entry; a line without
// one returns a *LookupError naming the exact pair. Resolvers validate
// coverage before returning, so this is a defensive check against mappings
// assembled by hand or loaded from storage.
func Apply(chunks []transcript.Chunk, mappings []SpeakerMapping) ([]transcript.Line, error) {
	byRef := make(map[SpeakerRef]string, len(mappings))
	for _, m := range mappings {
		byRef[SpeakerRef{ChunkNumber: m.ChunkNumber, OriginalID: m.OriginalID}] = m.GlobalName
	}

	var out []transcript.Line
	for _, c := range chunks {
		for _, l := range c.Lines {
			ref := SpeakerRef{ChunkNumber: c.Index, OriginalID: l.Speaker}
			name, ok := byRef[ref]
			if !ok {
				return nil, &LookupError{Ref: ref}
			}
			out = append(out, transcript.Line{Speaker: name, Text: l.Text})
		}
	}
	return out, nil
}

// IdentityMapping builds a mapping that keeps every chunk-local label as its
// own global name. Applying it reproduces the chunks' lines unchanged.
func IdentityMapping(chunks []transcript.Chunk) []SpeakerMapping {
	refs := sourceRefs(chunks)
	mappings := make([]SpeakerMapping, 0, len(refs))
	for _, r := range refs {
		mappings = append(mappings, SpeakerMapping{
			ChunkNumber: r.ChunkNumber,
			OriginalID:  r.OriginalID,
			GlobalName:  r.OriginalID,
		})
	}
	return mappings
}
