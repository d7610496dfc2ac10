package citation

import (
	"fmt"
	"sort"

	"github.com/serisow/docqa/qa_types"
)

// Excerpt length carried into a citation, in runes.
const excerptLimit = 200

// AssemblyError signals that an accepted match references a chunk with no
// resolvable metadata, which means the index and the metadata store have
// desynchronized. It is always surfaced, never dropped.
type AssemblyError struct {
	ChunkID string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("citation assembly: no resolvable metadata for chunk %q", e.ChunkID)
}

// Assembler converts accepted retrieval matches into citation records
// carrying provenance and per-match confidence.
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble orders citations by descending confidence; ties keep the
// original index ranking, which is itself similarity-descending. Each
// citation's confidence is the match's own normalized score, not the
// overall query confidence.
func (a *Assembler) Assemble(accepted []qa_types.ScoredMatch) ([]qa_types.Citation, error) {
	for _, m := range accepted {
		if m.Metadata.ChunkID == "" || m.Metadata.DocumentID == "" {
			return nil, &AssemblyError{ChunkID: m.ChunkID}
		}
	}

	ordered := make([]qa_types.ScoredMatch, len(accepted))
	copy(ordered, accepted)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Rank < ordered[j].Rank
	})

	citations := make([]qa_types.Citation, 0, len(ordered))
	for i, m := range ordered {
		citations = append(citations, qa_types.Citation{
			DocumentID:      m.Metadata.DocumentID,
			ChunkID:         m.Metadata.ChunkID,
			Text:            excerpt(m.Metadata.Text),
			ConfidenceScore: m.Confidence,
			Position:        i,
			Filename:        m.Metadata.Filename,
			ChunkIndex:      m.Metadata.ChunkIndex,
		})
	}
	return citations, nil
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "..."
}
