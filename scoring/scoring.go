package scoring

import (
	"github.com/serisow/docqa/qa_types"
)

// Similarity scales reported by the vector index providers.
const (
	ScaleCosine       = "cosine"
	ScaleInnerProduct = "inner_product"
)

// Scorer normalizes raw similarity scores into bounded confidence values
// and applies threshold filtering. Confidence is recomputed per query and
// never persisted.
type Scorer struct {
	scale string
}

func NewScorer(scale string) *Scorer {
	if scale == "" {
		scale = ScaleCosine
	}
	return &Scorer{scale: scale}
}

// Score normalizes each match into [0,1] and returns the overall confidence:
// the mean of the normalized scores of the matches actually returned. An
// empty match set yields confidence 0.0, not an error.
func (s *Scorer) Score(matches []qa_types.RetrievalMatch) ([]qa_types.ScoredMatch, float64) {
	if len(matches) == 0 {
		return nil, 0.0
	}

	scored := make([]qa_types.ScoredMatch, 0, len(matches))
	sum := 0.0
	for _, m := range matches {
		conf := s.Normalize(m.Similarity)
		scored = append(scored, qa_types.ScoredMatch{RetrievalMatch: m, Confidence: conf})
		sum += conf
	}
	return scored, sum / float64(len(scored))
}

// Normalize rescales a raw provider similarity into [0,1]. Cosine similarity
// in [-1,1] maps linearly via (sim+1)/2; inner-product scores are clamped.
func (s *Scorer) Normalize(similarity float64) float64 {
	var v float64
	switch s.scale {
	case ScaleInnerProduct:
		v = similarity
	default:
		v = (similarity + 1) / 2
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Accept partitions scored matches at the threshold. Matches below the
// threshold are dropped from the citation set but remain counted in the
// attempt's diagnostics via the rejected slice.
func Accept(scored []qa_types.ScoredMatch, threshold float64) (accepted, rejected []qa_types.ScoredMatch) {
	for _, m := range scored {
		if m.Confidence >= threshold {
			accepted = append(accepted, m)
		} else {
			rejected = append(rejected, m)
		}
	}
	return accepted, rejected
}
