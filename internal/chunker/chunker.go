// Package chunker splits extracted document text into bounded, ordered
// chunks with page attribution. It is pure: no I/O, no state, fully
// deterministic for a given input.
package chunker

import (
	"math"
	"strings"

	"github.com/pageturn/ingest/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	TargetChunkSize int // Target chunk size in words.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TargetChunkSize: 2000}
}

// Split partitions text into chunks of roughly equal word counts.
//
// The chunk count is ceil(totalWords/target); words are then redistributed
// evenly across that many chunks so the last chunk is never a tiny
// remainder. Start/end pages are estimated by linear interpolation of each
// chunk's word-offset range over [1, pageCount]; adjacent chunks may share
// a boundary page, which reflects extraction uncertainty.
func Split(docID, text string, pageCount int, cfg Config) []document.Chunk {
	if cfg.TargetChunkSize <= 0 {
		cfg.TargetChunkSize = 2000
	}
	if pageCount < 1 {
		pageCount = 1
	}

	words := strings.Fields(text)
	totalWords := len(words)
	if totalWords == 0 {
		return nil
	}

	chunkCount := ceilDiv(totalWords, cfg.TargetChunkSize)
	wordsPerChunk := ceilDiv(totalWords, chunkCount)

	chunks := make([]document.Chunk, 0, chunkCount)
	for start := 0; start < totalWords; start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > totalWords {
			end = totalWords
		}
		chunkText := strings.Join(words[start:end], " ")

		startPage := int(math.Floor(float64(start)/float64(totalWords)*float64(pageCount))) + 1
		endPage := int(math.Ceil(float64(end) / float64(totalWords) * float64(pageCount)))
		if endPage < startPage {
			endPage = startPage
		}
		if endPage > pageCount {
			endPage = pageCount
		}

		chunks = append(chunks, document.Chunk{
			DocumentID:    docID,
			Index:         len(chunks),
			Text:          chunkText,
			StartPage:     startPage,
			EndPage:       endPage,
			TokenEstimate: EstimateTokens(chunkText),
		})
	}

	return chunks
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
