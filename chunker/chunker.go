package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/serisow/docqa/config"
	"github.com/serisow/docqa/qa_types"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+['")\]]*\s*|[^.!?]+$`)

// SentenceChunker splits normalized text into overlapping, sentence-aligned
// chunks. Boundaries are deterministic: identical input and parameters
// always produce identical chunks.
type SentenceChunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewSentenceChunker(chunkSize, chunkOverlap int) (*SentenceChunker, error) {
	if chunkSize <= 0 {
		return nil, &config.ConfigurationError{Field: "chunk_size", Reason: "must be positive"}
	}
	if chunkOverlap < 0 {
		return nil, &config.ConfigurationError{Field: "chunk_overlap", Reason: "cannot be negative"}
	}
	if chunkOverlap >= chunkSize {
		return nil, &config.ConfigurationError{Field: "chunk_overlap", Reason: "must be smaller than chunk_size"}
	}
	return &SentenceChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split cuts text into chunks for the given document. Sentences are never
// split unless a single sentence exceeds the chunk size, in which case it is
// force-split at the character limit. Consecutive chunks share the trailing
// chunkOverlap characters of the previous chunk, broken forward at a word
// boundary.
func (c *SentenceChunker) Split(documentID, text string) ([]qa_types.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences := splitSentences(text)

	var chunks []qa_types.Chunk
	var current []string
	currentLen := 0
	start := 0
	carried := false // current holds only the overlap carried from the previous chunk

	emit := func(chunkText string) {
		chunks = append(chunks, c.newChunk(documentID, len(chunks), chunkText, start))
	}

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunkText := strings.Join(current, " ")
		emit(chunkText)
		overlap := c.overlapText(chunkText)
		start += len(chunkText) - len(overlap)
		if overlap != "" {
			current = []string{overlap}
			currentLen = len(overlap)
			carried = true
		} else {
			current = nil
			currentLen = 0
		}
	}

	for _, sentence := range sentences {
		// A sentence that cannot fit in any chunk on its own is force-split
		// at the character limit. Overlap is not carried across the split.
		if len(sentence) > c.chunkSize {
			if len(current) > 0 && !carried {
				chunkText := strings.Join(current, " ")
				emit(chunkText)
				start += len(chunkText) + 1
			}
			current = nil
			currentLen = 0
			carried = false
			rest := sentence
			for len(rest) > c.chunkSize {
				emit(rest[:c.chunkSize])
				start += c.chunkSize
				rest = rest[c.chunkSize:]
			}
			if rest != "" {
				current = []string{rest}
				currentLen = len(rest)
			}
			continue
		}

		if len(current) > 0 && !onlyCarried(current, carried) && currentLen+1+len(sentence) > c.chunkSize {
			flush()
		}
		if len(current) == 0 {
			currentLen = len(sentence)
		} else {
			currentLen += 1 + len(sentence)
		}
		current = append(current, sentence)
		carried = false
	}

	// Emit the remainder unless it is nothing but the carried overlap.
	if len(current) > 0 && !carried {
		emit(strings.Join(current, " "))
	}

	return chunks, nil
}

func onlyCarried(current []string, carried bool) bool {
	return carried && len(current) == 1
}

func (c *SentenceChunker) newChunk(documentID string, index int, text string, start int) qa_types.Chunk {
	return qa_types.Chunk{
		ChunkID:     fmt.Sprintf("%s_%d", documentID, index),
		DocumentID:  documentID,
		Index:       index,
		Text:        text,
		StartOffset: start,
		EndOffset:   start + len(text),
	}
}

// overlapText returns the trailing chunkOverlap characters of text, advanced
// past the first partial word so the overlap starts on a word boundary.
func (c *SentenceChunker) overlapText(text string) string {
	if c.chunkOverlap == 0 {
		return ""
	}
	if len(text) <= c.chunkOverlap {
		return text
	}
	overlap := text[len(text)-c.chunkOverlap:]
	if firstSpace := strings.Index(overlap, " "); firstSpace >= 0 {
		return overlap[firstSpace+1:]
	}
	return overlap
}

func splitSentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, strings.Join(strings.Fields(s), " "))
	}
	return sentences
}
