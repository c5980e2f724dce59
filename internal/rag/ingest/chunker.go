package ingest

import (
	"fmt"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
)

func ValidateChunking(chunkSize int, overlap int) error {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return ragErrors.New(ragErrors.ErrDegenerateChunkingConfig, "chunk",
			fmt.Errorf("chunk size %d, overlap %d: need chunk size > overlap >= 0", chunkSize, overlap))
	}
	return nil
}

// Chunk cuts text into fixed windows of chunkSize runes, each starting chunkSize-overlap after the
// previous one. Boundaries ignore sentences and words.
func Chunk(text string, chunkSize int, overlap int) ([]commonModels.DocumentChunk, error) {
	if err := ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := chunkSize - overlap
	chunks := make([]commonModels.DocumentChunk, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, commonModels.DocumentChunk{
			Index:      len(chunks),
			Start:      start,
			End:        end,
			Content:    string(runes[start:end]),
			TokenCount: end - start,
		})
	}
	return chunks, nil
}
