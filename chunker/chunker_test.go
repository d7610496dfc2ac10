package chunker

import (
	"strings"
	"testing"

	"github.com/serisow/docqa/config"
)

// sentencesOfLength builds text from fixed-size sentences so chunk
// boundaries land predictably.
func sentencesOfLength(sentenceLen, total int) string {
	words := strings.Repeat("alpha ", sentenceLen/6+2)
	sentence := strings.TrimRight(words[:sentenceLen-1], " ") + "."
	var b strings.Builder
	for b.Len() < total {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
	}
	return b.String()[:total]
}

func TestNewSentenceChunkerValidation(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		overlap   int
		expectErr bool
	}{
		{name: "valid parameters", size: 1000, overlap: 200},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "overlap equals size", size: 200, overlap: 200, expectErr: true},
		{name: "overlap exceeds size", size: 100, overlap: 150, expectErr: true},
		{name: "negative overlap", size: 100, overlap: -1, expectErr: true},
		{name: "zero size", size: 0, overlap: 0, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSentenceChunker(tt.size, tt.overlap)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected configuration error, got none")
				}
				if _, ok := err.(*config.ConfigurationError); !ok {
					t.Errorf("expected *config.ConfigurationError, got %T", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	c, err := NewSentenceChunker(300, 60)
	if err != nil {
		t.Fatal(err)
	}
	text := sentencesOfLength(80, 2000)

	first, err := c.Split("doc", text)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Split("doc", text)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestSplitSentenceBoundaries(t *testing.T) {
	c, err := NewSentenceChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}

	// 2500 characters of clean 99-char sentences. Each sentence occupies
	// 100 characters once joined, so chunk boundaries land just under 1000
	// and 2000.
	text := sentencesOfLength(99, 2500)
	chunks, err := c.Split("doc", text)
	if err != nil {
		t.Fatal(err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Text) != 999 {
		t.Errorf("chunk 0 is %d chars, want 999", len(chunks[0].Text))
	}
	for i, ch := range chunks {
		if len(ch.Text) > 1000 {
			t.Errorf("chunk %d exceeds chunk size: %d chars", i, len(ch.Text))
		}
		if ch.Index != i {
			t.Errorf("chunk %d has ordinal %d", i, ch.Index)
		}
	}
	if chunks[1].StartOffset < chunks[0].EndOffset-200 {
		t.Errorf("chunk 1 starts %d chars before chunk 0 end, want at most 200",
			chunks[0].EndOffset-chunks[1].StartOffset)
	}
	if chunks[1].StartOffset >= chunks[0].EndOffset {
		t.Error("chunk 1 does not overlap chunk 0")
	}
}

func TestSplitOverlapContent(t *testing.T) {
	c, err := NewSentenceChunker(100, 30)
	if err != nil {
		t.Fatal(err)
	}
	text := "Alpha bravo charlie delta echo foxtrot. Golf hotel india juliet kilo lima. " +
		"Mike november oscar papa quebec romeo. Sierra tango uniform victor whiskey xray."

	chunks, err := c.Split("doc", text)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Text[max(0, len(chunks[i-1].Text)-30):]
		// The next chunk must begin with the tail of the previous one,
		// trimmed to a word boundary.
		if !strings.Contains(prevTail, firstWord(chunks[i].Text)) {
			t.Errorf("chunk %d does not begin with overlap from chunk %d: %q vs tail %q",
				i, i-1, firstWord(chunks[i].Text), prevTail)
		}
	}
}

func TestSplitForceSplitsOversizedSentence(t *testing.T) {
	c, err := NewSentenceChunker(50, 10)
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", 175) + "."
	chunks, err := c.Split("doc", long)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 4 {
		t.Fatalf("expected oversized sentence to be force-split, got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Text) > 50 {
			t.Errorf("chunk %d exceeds chunk size after force-split: %d", i, len(ch.Text))
		}
	}
	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Text)
	}
	if joined.String() != long {
		t.Error("force-split chunks do not reassemble the original sentence")
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := NewSentenceChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"", "   ", "\n\t "} {
		chunks, err := c.Split("doc", text)
		if err != nil {
			t.Fatalf("unexpected error for blank input: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected no chunks for blank input %q, got %d", text, len(chunks))
		}
	}
}

func TestSplitChunkIDs(t *testing.T) {
	c, err := NewSentenceChunker(60, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Split("abc123", "One sentence here. Another sentence here. A third sentence here.")
	if err != nil {
		t.Fatal(err)
	}
	for i, ch := range chunks {
		want := "abc123_" + string(rune('0'+i))
		if ch.ChunkID != want {
			t.Errorf("chunk %d: got id %q, want %q", i, ch.ChunkID, want)
		}
		if ch.DocumentID != "abc123" {
			t.Errorf("chunk %d: document id %q", i, ch.DocumentID)
		}
	}
}

func firstWord(s string) string {
	if i := strings.Index(s, " "); i > 0 {
		return s[:i]
	}
	return s
}
