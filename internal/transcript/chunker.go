package transcript

const (
	// DefaultMaxChunkChars bounds a chunk's rendered size. Sized so a chunk
	// plus the reconciliation prompt stays comfortably inside typical model
	// context windows.
	DefaultMaxChunkChars = 12000
)

// Chunker splits transcripts into bounded-size chunks at speaker-turn edges.
// The zero value is not usable; construct with [NewChunker].
type Chunker struct {
	maxChars int
}

// NewChunker returns a Chunker with the given character budget per chunk.
// Non-positive values fall back to [DefaultMaxChunkChars].
func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	return &Chunker{maxChars: maxChars}
}

// Split partitions lines into chunks such that joining the chunks in order
// reproduces lines exactly. No chunk's rendered size exceeds the budget
// unless a single turn alone does, in which case that turn occupies its own
// oversized chunk rather than being split mid-turn. Chunk indices start at 1.
//
// An empty transcript yields zero chunks; that is a valid degenerate result,
// not an error.
func (c *Chunker) Split(lines []Line) []Chunk {
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	cur := Chunk{Index: 1}
	curSize := 0

	for _, l := range lines {
		sz := lineSize(l)
		if curSize > 0 && curSize+sz > c.maxChars {
			chunks = append(chunks, cur)
			cur = Chunk{Index: cur.Index + 1}
			curSize = 0
		}
		// An oversized turn lands in the (now empty) current chunk alone;
		// the next iteration's overflow check will close it.
		cur.Lines = append(cur.Lines, l)
		curSize += sz
	}
	chunks = append(chunks, cur)
	return chunks
}
