package citation

import (
	"strings"
	"testing"

	"github.com/serisow/docqa/qa_types"
)

func match(chunkID string, rank int, confidence float64) qa_types.ScoredMatch {
	return qa_types.ScoredMatch{
		RetrievalMatch: qa_types.RetrievalMatch{
			ChunkID: chunkID,
			Rank:    rank,
			Metadata: qa_types.ChunkMetadata{
				DocumentID: "doc1",
				ChunkID:    chunkID,
				ChunkIndex: rank,
				Filename:   "report.pdf",
				Text:       "content of " + chunkID,
			},
		},
		Confidence: confidence,
	}
}

func TestAssembleOrdersByDescendingConfidence(t *testing.T) {
	a := NewAssembler()
	citations, err := a.Assemble([]qa_types.ScoredMatch{
		match("c0", 0, 0.72),
		match("c1", 1, 0.91),
		match("c2", 2, 0.85),
	})
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{"c1", "c2", "c0"}
	for i, want := range wantOrder {
		if citations[i].ChunkID != want {
			t.Errorf("position %d: got %s, want %s", i, citations[i].ChunkID, want)
		}
		if citations[i].Position != i {
			t.Errorf("position field = %d at index %d", citations[i].Position, i)
		}
	}
	for i := 1; i < len(citations); i++ {
		if citations[i].ConfidenceScore > citations[i-1].ConfidenceScore {
			t.Error("citations not sorted by descending confidence")
		}
	}
}

func TestAssembleTiesKeepIndexRanking(t *testing.T) {
	a := NewAssembler()
	citations, err := a.Assemble([]qa_types.ScoredMatch{
		match("first", 0, 0.8),
		match("second", 1, 0.8),
		match("third", 2, 0.8),
	})
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if citations[i].ChunkID != want {
			t.Errorf("tie-break broke index order: position %d got %s, want %s",
				i, citations[i].ChunkID, want)
		}
	}
}

func TestAssembleCarriesMatchConfidence(t *testing.T) {
	a := NewAssembler()
	citations, err := a.Assemble([]qa_types.ScoredMatch{match("c0", 0, 0.77)})
	if err != nil {
		t.Fatal(err)
	}
	if citations[0].ConfidenceScore != 0.77 {
		t.Errorf("citation confidence = %v, want the match's 0.77", citations[0].ConfidenceScore)
	}
	if citations[0].DocumentID != "doc1" || citations[0].Filename != "report.pdf" {
		t.Errorf("citation provenance incomplete: %+v", citations[0])
	}
}

func TestAssembleMissingMetadataFails(t *testing.T) {
	a := NewAssembler()
	broken := qa_types.ScoredMatch{
		RetrievalMatch: qa_types.RetrievalMatch{ChunkID: "orphan", Rank: 0},
		Confidence:     0.9,
	}
	_, err := a.Assemble([]qa_types.ScoredMatch{match("c0", 0, 0.8), broken})
	if err == nil {
		t.Fatal("expected AssemblyError for unresolvable chunk metadata")
	}
	asmErr, ok := err.(*AssemblyError)
	if !ok {
		t.Fatalf("expected *AssemblyError, got %T", err)
	}
	if asmErr.ChunkID != "orphan" {
		t.Errorf("error names chunk %q, want orphan", asmErr.ChunkID)
	}
}

func TestAssembleTruncatesExcerpt(t *testing.T) {
	a := NewAssembler()
	m := match("c0", 0, 0.8)
	m.Metadata.Text = strings.Repeat("é", 500)
	citations, err := a.Assemble([]qa_types.ScoredMatch{m})
	if err != nil {
		t.Fatal(err)
	}
	got := citations[0].Text
	if !strings.HasSuffix(got, "...") {
		t.Error("long excerpt not truncated with ellipsis")
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 200 {
		t.Errorf("excerpt length = %d runes, want 200", n)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	a := NewAssembler()
	citations, err := a.Assemble(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(citations) != 0 {
		t.Errorf("expected no citations, got %d", len(citations))
	}
}
