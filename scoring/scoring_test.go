package scoring

import (
	"math"
	"testing"

	"github.com/serisow/docqa/qa_types"
)

func matchesWithSimilarity(sims ...float64) []qa_types.RetrievalMatch {
	out := make([]qa_types.RetrievalMatch, len(sims))
	for i, s := range sims {
		out[i] = qa_types.RetrievalMatch{ChunkID: "c", Similarity: s, Rank: i}
	}
	return out
}

func TestScoreEmptyMatchSet(t *testing.T) {
	scorer := NewScorer(ScaleCosine)
	scored, overall := scorer.Score(nil)
	if scored != nil {
		t.Errorf("expected nil scored matches, got %v", scored)
	}
	if overall != 0.0 {
		t.Errorf("expected overall confidence exactly 0.0, got %v", overall)
	}
}

func TestScoreMeanOfReturnedMatches(t *testing.T) {
	scorer := NewScorer(ScaleInnerProduct)

	// Five were requested but only three returned; the mean covers the
	// returned set, never padded to the requested top_k.
	scored, overall := scorer.Score(matchesWithSimilarity(0.9, 0.6, 0.5))
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored matches, got %d", len(scored))
	}
	want := (0.9 + 0.6 + 0.5) / 3
	if math.Abs(overall-want) > 1e-9 {
		t.Errorf("overall confidence = %v, want %v", overall, want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		scale      string
		similarity float64
		want       float64
	}{
		{name: "cosine upper bound", scale: ScaleCosine, similarity: 1, want: 1},
		{name: "cosine lower bound", scale: ScaleCosine, similarity: -1, want: 0},
		{name: "cosine midpoint", scale: ScaleCosine, similarity: 0, want: 0.5},
		{name: "cosine typical", scale: ScaleCosine, similarity: 0.8, want: 0.9},
		{name: "cosine out of range clamps", scale: ScaleCosine, similarity: 1.2, want: 1},
		{name: "inner product passthrough", scale: ScaleInnerProduct, similarity: 0.4, want: 0.4},
		{name: "inner product clamps high", scale: ScaleInnerProduct, similarity: 3.7, want: 1},
		{name: "inner product clamps low", scale: ScaleInnerProduct, similarity: -0.2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewScorer(tt.scale).Normalize(tt.similarity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Normalize(%v) = %v, want %v", tt.similarity, got, tt.want)
			}
		})
	}
}

func TestOverallConfidenceBounded(t *testing.T) {
	scorer := NewScorer(ScaleCosine)
	sets := [][]qa_types.RetrievalMatch{
		matchesWithSimilarity(-1, -1, -1),
		matchesWithSimilarity(1, 1),
		matchesWithSimilarity(-5, 5),
		matchesWithSimilarity(0.33),
	}
	for _, set := range sets {
		_, overall := scorer.Score(set)
		if overall < 0 || overall > 1 {
			t.Errorf("overall confidence %v outside [0,1] for %v", overall, set)
		}
	}
}

func TestAccept(t *testing.T) {
	scorer := NewScorer(ScaleInnerProduct)
	scored, _ := scorer.Score(matchesWithSimilarity(0.9, 0.6, 0.5))

	accepted, rejected := Accept(scored, 0.7)
	if len(accepted) != 1 || len(rejected) != 2 {
		t.Fatalf("got %d accepted / %d rejected, want 1 / 2", len(accepted), len(rejected))
	}
	if accepted[0].Confidence != 0.9 {
		t.Errorf("accepted match has confidence %v", accepted[0].Confidence)
	}

	// Exact threshold is accepted.
	accepted, _ = Accept(scored, 0.5)
	if len(accepted) != 3 {
		t.Errorf("matches at the threshold must be accepted, got %d of 3", len(accepted))
	}
}
